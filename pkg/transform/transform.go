// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transform

import (
	"context"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/smalikit/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// 🎨 indent is the smali body indentation convention
const indent = "    "

// 📊 Result is the output of applying a chain to one block's body
type Result struct {
	Body    string // New body text
	Changed bool   // Whether any primitive altered the text
}

// ⛓️ Chain applies the configured body transformations in a fixed
// order. Later primitives see the output of earlier ones; a full
// rewrite discards everything prior.
type Chain struct {
	spec  *config.RewriteSpec
	regex *regexp.Regexp // compiled RegexReplace pattern, nil when unset
}

// 🏭 NewChain builds a chain from a validated spec, compiling the
// regex primitive eagerly so a bad pattern fails before any file is
// touched.
func NewChain(spec *config.RewriteSpec) (*Chain, error) {
	c := &Chain{spec: spec}
	if spec.RegexReplace != nil {
		re, err := regexp.Compile(spec.RegexReplace.Old)
		if err != nil {
			return nil, errors.Errorf("compiling regex pattern: %w", err)
		}
		c.regex = re
	}
	return c, nil
}

// 🏃 Apply runs every configured primitive against the body.
//
// A full body rewrite always reports Changed, even when the new text
// equals the old: the file-level byte comparison in the patcher is
// the real write-avoidance gate. Every other primitive is a strict
// no-op when its target is absent.
func (c *Chain) Apply(ctx context.Context, body string) Result {
	logger := zerolog.Ctx(ctx)
	res := Result{Body: body}

	// 1. Full rewrite
	if c.spec.RewriteBody != nil {
		text := expandEscapes(*c.spec.RewriteBody)
		res.Body = "\n" + indent + text + "\n"
		res.Changed = true
		logger.Debug().Msg("rewrote method body")
	}

	// 2. Literal replace, all occurrences
	if r := c.spec.Replace; r != nil {
		if strings.Contains(res.Body, r.Old) {
			res.Body = strings.ReplaceAll(res.Body, r.Old, r.New)
			res.Changed = true
			logger.Debug().Str("old", r.Old).Msg("replaced literal")
		}
	}

	// 3. Regex replace, all matches, with capture-group backreferences
	if c.regex != nil {
		if c.regex.MatchString(res.Body) {
			res.Body = c.regex.ReplaceAllString(res.Body, c.spec.RegexReplace.New)
			res.Changed = true
			logger.Debug().Str("pattern", c.regex.String()).Msg("replaced regex matches")
		}
	}

	// 4. Delete substring, all occurrences
	if d := c.spec.DeleteString; d != nil && *d != "" {
		if strings.Contains(res.Body, *d) {
			res.Body = strings.ReplaceAll(res.Body, *d, "")
			res.Changed = true
			logger.Debug().Str("target", *d).Msg("deleted substring")
		}
	}

	// 5. Insert after every anchor occurrence
	if ins := c.spec.AfterLine; ins != nil {
		if strings.Contains(res.Body, ins.Anchor) {
			res.Body = strings.ReplaceAll(res.Body, ins.Anchor, ins.Anchor+"\n"+indent+ins.Code)
			res.Changed = true
			logger.Debug().Str("anchor", ins.Anchor).Msg("inserted line after anchor")
		}
	}

	// 6. Insert before every anchor occurrence
	if ins := c.spec.BeforeLine; ins != nil {
		if strings.Contains(res.Body, ins.Anchor) {
			res.Body = strings.ReplaceAll(res.Body, ins.Anchor, indent+ins.Code+"\n"+ins.Anchor)
			res.Changed = true
			logger.Debug().Str("anchor", ins.Anchor).Msg("inserted line before anchor")
		}
	}

	// 7. Insert at a fixed line index
	if ins := c.spec.AtLine; ins != nil {
		newBody, ok := insertAtLine(res.Body, ins.Index, ins.Code)
		if !ok {
			logger.Warn().Str("index", ins.Index).Msg("skipping line insertion: index is not a number")
		} else {
			res.Body = newBody
			res.Changed = true
			logger.Debug().Str("index", ins.Index).Msg("inserted code at line index")
		}
	}

	return res
}

// 📐 insertAtLine splits the body on newlines, clamps the index into
// [0, lineCount] and inserts the re-indented code as one contiguous
// element. Because the body begins with the newline after the header,
// the first split element is typically empty; index 1 targets the
// line right after the declaration (.locals).
func insertAtLine(body, index, code string) (string, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(index))
	if err != nil {
		return "", false
	}

	lines := strings.Split(body, "\n")

	codeLines := strings.Split(expandEscapes(code), "\n")
	formatted := make([]string, 0, len(codeLines))
	for _, l := range codeLines {
		formatted = append(formatted, indent+strings.TrimSpace(l))
	}

	if idx < 0 {
		idx = 0
	}
	if idx > len(lines) {
		idx = len(lines)
	}

	lines = slices.Insert(lines, idx, strings.Join(formatted, "\n"))
	return strings.Join(lines, "\n"), true
}

// 🔣 expandEscapes turns literal \n sequences into real newlines so
// multi-line code can be passed through single-line flag values.
func expandEscapes(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
