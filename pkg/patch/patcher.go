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

package patch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/smalikit/pkg/config"
	"github.com/walteh/smalikit/pkg/locate"
	"github.com/walteh/smalikit/pkg/log"
	"github.com/walteh/smalikit/pkg/status"
	"github.com/walteh/smalikit/pkg/transform"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ sourceExt is the file extension of smali source files
const sourceExt = ".smali"

// 📊 Outcome is the per-file record of one patch run
type Outcome struct {
	Path              string            // File that was processed
	MatchedSignatures []string          // Trimmed headers of every matched block
	BytesChanged      int               // Size delta between new and original content
	Written           bool              // Whether the file was written back
	Status            status.FileStatus // Terminal state
}

// ✂️ edit is one span replacement on the original buffer. Spans come
// from the scanner, so they are ordered and non-overlapping.
type edit struct {
	start int
	end   int
	text  string
}

// 🔧 Patcher applies one rewrite spec to a file or a directory tree
type Patcher struct {
	spec    *config.RewriteSpec
	sel     locate.Selector
	chain   *transform.Chain
	status  *status.Manager
	console *log.Logger
}

// 🏭 New creates a patcher from a spec, validating it before any file
// is touched.
func New(spec *config.RewriteSpec, statusMgr *status.Manager, console *log.Logger) (*Patcher, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.Errorf("validating spec: %w", err)
	}

	chain, err := transform.NewChain(spec)
	if err != nil {
		return nil, errors.Errorf("building transform chain: %w", err)
	}

	return &Patcher{
		spec: spec,
		sel: locate.Selector{
			Method:     spec.Method,
			Keyword:    spec.Keyword,
			ReturnType: spec.ReturnType,
		},
		chain:   chain,
		status:  statusMgr,
		console: console,
	}, nil
}

// 🏃 Run applies the spec below root. A single file is patched
// directly, ignoring the filename filter; a directory is walked
// depth-first, one file at a time. Per-file failures are recorded and
// never abort the traversal.
func (p *Patcher) Run(ctx context.Context, root string) ([]Outcome, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("path not found: %s", root)
		}
		return nil, errors.Errorf("checking root path: %w", err)
	}

	if !info.IsDir() {
		return []Outcome{p.patchFile(ctx, root)}, nil
	}

	var outcomes []Outcome
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), sourceExt) {
			return nil
		}
		if p.spec.NameFilter != "" && !strings.Contains(d.Name(), p.spec.NameFilter) {
			return nil
		}
		if p.shouldIgnore(ctx, root, path) {
			return nil
		}

		outcomes = append(outcomes, p.patchFile(ctx, path))
		return nil
	})
	if err != nil {
		return outcomes, errors.Errorf("walking %s: %w", root, err)
	}

	return outcomes, nil
}

// 🔍 shouldIgnore checks the spec's glob patterns against the path
// relative to the walk root.
func (p *Patcher) shouldIgnore(ctx context.Context, root, path string) bool {
	if len(p.spec.IgnorePatterns) == 0 {
		return false
	}

	logger := zerolog.Ctx(ctx)

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range p.spec.IgnorePatterns {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			logger.Debug().Str("pattern", pattern).Str("path", rel).Err(err).Msg("error matching pattern")
			continue
		}
		if matched {
			logger.Debug().Str("file", rel).Str("pattern", pattern).Msg("file ignored by pattern")
			return true
		}
	}

	return false
}

// 📄 patchFile runs the pipeline on a single file. Errors are
// recorded as a Failed outcome, never returned, so one broken file
// cannot abort the rest of the tree.
func (p *Patcher) patchFile(ctx context.Context, path string) Outcome {
	out := Outcome{Path: path, Status: status.StatusNoMatch}

	raw, err := os.ReadFile(path)
	if err != nil {
		return p.fail(ctx, out, errors.Errorf("reading file: %w", err))
	}
	content := string(raw)

	// Fast reject: if the literal method selector is absent from the
	// raw content and no keyword is configured, the file cannot match.
	if p.spec.Method != "" && p.spec.Keyword == "" && !strings.Contains(content, p.spec.Method) {
		p.status.Track(ctx, path, status.FileInfo{Status: status.StatusNoMatch})
		return out
	}

	blocks := locate.Scan(content, p.sel)

	var edits []edit
	for _, b := range blocks {
		if !p.sel.Keep(b) {
			continue
		}

		out.MatchedSignatures = append(out.MatchedSignatures, b.Signature())
		p.console.LogMatch(ctx, log.MatchOperation{
			Path:      filepath.Base(path),
			Signature: b.Signature(),
			Status:    p.matchStatus(),
			IsDeleted: p.spec.DeleteMethod,
			IsChanged: !p.spec.DeleteMethod,
		})

		if p.spec.DeleteMethod {
			end := b.End
			// Consume one trailing newline so removing the block does
			// not leave a doubled blank separator behind.
			if end < len(content) && content[end] == '\n' {
				end++
			}
			edits = append(edits, edit{start: b.Start, end: end, text: ""})
			continue
		}

		res := p.chain.Apply(ctx, b.Body)
		if !res.Changed {
			continue
		}

		newBlock := b.Header + res.Body + b.Footer
		if newBlock == b.Text() {
			continue
		}
		edits = append(edits, edit{start: b.Start, end: b.End, text: newBlock})
	}

	if len(out.MatchedSignatures) == 0 {
		p.status.Track(ctx, path, status.FileInfo{Status: status.StatusNoMatch})
		return out
	}

	out.Status = status.StatusUnchanged
	if len(edits) == 0 {
		p.status.Track(ctx, path, status.FileInfo{Status: out.Status})
		return out
	}

	newContent := splice(content, edits)
	if newContent == content {
		p.status.Track(ctx, path, status.FileInfo{Status: out.Status})
		return out
	}

	if err := p.status.WriteFileAtomic(ctx, path, []byte(newContent)); err != nil {
		return p.fail(ctx, out, err)
	}

	p.status.TrackWrite(ctx, path, []byte(newContent))
	p.console.Successf("saved %s", path)

	out.Status = status.StatusRewritten
	out.Written = true
	out.BytesChanged = len(newContent) - len(content)
	return out
}

// 📝 matchStatus names the action the spec applies to a matched block
func (p *Patcher) matchStatus() string {
	if p.spec.DeleteMethod {
		return "delete"
	}
	return "patch"
}

// ❌ fail records a per-file failure and keeps the traversal alive
func (p *Patcher) fail(ctx context.Context, out Outcome, err error) Outcome {
	p.console.Errorf("processing %s: %v", out.Path, err)
	p.status.Track(ctx, out.Path, status.FileInfo{Status: status.StatusFailed, Error: err})
	out.Status = status.StatusFailed
	return out
}

// ✂️ splice rebuilds the buffer with every edit applied at its
// recorded span. Spans come straight from the scanner, so replacement
// never re-finds text and byte-identical duplicate blocks cannot
// cross-talk.
func splice(content string, edits []edit) string {
	var sb strings.Builder
	last := 0
	for _, e := range edits {
		sb.WriteString(content[last:e.start])
		sb.WriteString(e.text)
		last = e.end
	}
	sb.WriteString(content[last:])
	return sb.String()
}
