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

package locate

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🏷️ Anchor markers delimiting a method block in smali source
const (
	headerAnchor = ".method "
	footerAnchor = ".end method"
)

// 📦 Block is one method block found in a source buffer. Offsets are
// recorded on the immutable buffer so splicing never has to re-find
// text: Header+Body+Footer equals content[Start:End].
type Block struct {
	Header string // Declaration line, including its indentation, without trailing newline
	Body   string // Everything between header and footer, starts and ends with a newline
	Footer string // The .end method line text, including its indentation
	Start  int    // Offset of the header line's first character
	End    int    // Offset just past the footer text
}

// 📝 Text returns the full original text of the block
func (b Block) Text() string {
	return b.Header + b.Body + b.Footer
}

// 📝 Signature returns the trimmed declaration line
func (b Block) Signature() string {
	return strings.TrimSpace(b.Header)
}

// 🎯 Selector picks which method blocks to transform
type Selector struct {
	Method     string // Bare name or full signature; empty means any block
	Keyword    string // Literal substring the body must contain
	ReturnType string // Return descriptor the header must declare
}

// 🔍 Validate rejects a selector that could match nothing on purpose
func (s Selector) Validate() error {
	if s.Method == "" && s.Keyword == "" {
		return errors.Errorf("either a method selector or a keyword is required")
	}
	return nil
}

// 🔍 matchHeader checks the header anchor rules:
//   - a selector containing "(" is a full signature, matched verbatim
//   - a bare name must be immediately followed by "(" so that a name
//     which is a prefix of a longer name does not match
//   - either way the name must start on a word boundary (preceded by
//     whitespace), so a selector that is a suffix of a longer name
//     does not match either
//   - no method selector at all keeps every block (keyword-only mode)
func (s Selector) matchHeader(header string) bool {
	if s.Method == "" {
		return true
	}
	if strings.Contains(s.Method, "(") {
		return containsToken(header, s.Method)
	}
	return containsToken(header, s.Method+"(")
}

// 🔍 containsToken reports whether needle occurs in header preceded
// by whitespace. Header lines put whitespace between the .method
// keyword, its access flags and the name, so this anchors the name's
// start the way the footer anchors a block's end.
func containsToken(header, needle string) bool {
	for from := 0; ; {
		i := strings.Index(header[from:], needle)
		if i < 0 {
			return false
		}
		i += from
		if i > 0 && (header[i-1] == ' ' || header[i-1] == '\t') {
			return true
		}
		from = i + 1
	}
}

// 🔍 Keep applies the secondary filters to a located block. Filters
// are conjunctive; a block failing one is silently skipped.
func (s Selector) Keep(b Block) bool {
	if s.Keyword != "" && !strings.Contains(b.Body, s.Keyword) {
		return false
	}
	if s.ReturnType != "" && !strings.Contains(b.Header, ")"+s.ReturnType) {
		return false
	}
	return true
}

// 🔎 Scan walks the buffer line by line and returns every method block
// whose header matches the selector, ordered by position and
// non-overlapping. The footer is the nearest following .end method
// line (blocks never nest). A header with no footer after it is a
// truncated trailing block and is ignored.
func Scan(content string, sel Selector) []Block {
	var blocks []Block

	offset := 0
	for offset < len(content) {
		line, next := nextLine(content, offset)

		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, headerAnchor) && sel.matchHeader(line) {
			if blk, ok := scanBlock(content, offset, line, next); ok {
				blocks = append(blocks, blk)
				offset = blk.End
				continue
			}
		}

		offset = next
	}

	return blocks
}

// 🔎 scanBlock finds the nearest footer after the header line and
// records the block's span on the buffer.
func scanBlock(content string, headerStart int, header string, searchFrom int) (Block, bool) {
	pos := searchFrom
	for pos < len(content) {
		line, next := nextLine(content, pos)

		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, footerAnchor) {
			indent := len(line) - len(trimmed)
			end := pos + indent + len(footerAnchor)
			return Block{
				Header: header,
				Body:   content[headerStart+len(header) : pos],
				Footer: content[pos:end],
				Start:  headerStart,
				End:    end,
			}, true
		}

		pos = next
	}
	return Block{}, false
}

// 📄 nextLine returns the line starting at offset (without its
// newline) and the offset of the following line.
func nextLine(content string, offset int) (string, int) {
	if i := strings.IndexByte(content[offset:], '\n'); i >= 0 {
		return content[offset : offset+i], offset + i + 1
	}
	return content[offset:], len(content)
}
