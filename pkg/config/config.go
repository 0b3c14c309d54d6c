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

package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🔌 Parser is the interface for script parsers
type Parser interface {
	// 📝 Parse parses a patch script from bytes
	Parse(ctx context.Context, data []byte) (*Script, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 🔄 Replacement holds the arguments of a literal or regex substitution
type Replacement struct {
	Old string `yaml:"old"` // Text or pattern to replace
	New string `yaml:"new"` // Replacement text, $1-style backreferences for regex
}

// 📌 Insertion holds the arguments of an anchored line insertion
type Insertion struct {
	Anchor string `yaml:"anchor"` // Literal text to anchor on
	Code   string `yaml:"code"`   // Line to insert next to the anchor
}

// 📐 LineInsertion holds the arguments of an indexed line insertion.
// Index stays a string so a malformed value is recovered at transform
// time (the primitive is skipped) instead of failing the whole spec.
type LineInsertion struct {
	Index string `yaml:"index"` // Zero-based line index, clamped into range
	Code  string `yaml:"code"`  // Code to insert, may contain \n escapes
}

// 📚 RewriteSpec describes one method rewrite: which blocks to select
// and which body transformations to apply to them.
type RewriteSpec struct {
	Name string `yaml:"name,omitempty"` // Optional label for script bookkeeping

	// Selector fields
	Method         string   `yaml:"method,omitempty"`          // Bare method name or full signature
	Keyword        string   `yaml:"keyword,omitempty"`         // Literal substring the body must contain
	ReturnType     string   `yaml:"return_type,omitempty"`     // Smali return descriptor (Z, V, I, ...)
	NameFilter     string   `yaml:"name_filter,omitempty"`     // Substring filter on file names (directory mode)
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"` // Glob patterns for files to skip
	Recursive      bool     `yaml:"recursive,omitempty"`       // Accepted for CLI parity, directories always recurse

	// Transform primitives, applied in this order
	RewriteBody  *string        `yaml:"rewrite_body,omitempty"`  // Replace the entire method body
	Replace      *Replacement   `yaml:"replace,omitempty"`       // Literal replace, all occurrences
	RegexReplace *Replacement   `yaml:"regex_replace,omitempty"` // Regex replace, all matches
	DeleteString *string        `yaml:"delete_string,omitempty"` // Remove all occurrences of a literal
	AfterLine    *Insertion     `yaml:"after_line,omitempty"`    // Insert a line after every anchor occurrence
	BeforeLine   *Insertion     `yaml:"before_line,omitempty"`   // Insert a line before every anchor occurrence
	AtLine       *LineInsertion `yaml:"at_line,omitempty"`       // Insert code at a fixed line index
	DeleteMethod bool           `yaml:"delete_method,omitempty"` // Remove the whole block, short-circuits the chain
}

// 📜 Script is an ordered list of rewrite specs applied sequentially
// against one root. Order is preserved exactly as written.
type Script struct {
	Patches []*RewriteSpec `yaml:"patches"`
}

// 🎯 LoadScript loads a patch script from a file
func LoadScript(ctx context.Context, path string) (*Script, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading patch script")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading script file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	script, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing script: %w", err)
	}

	if err := script.Validate(); err != nil {
		return nil, errors.Errorf("validating script: %w", err)
	}

	return script, nil
}

// 🔍 Validate checks if the spec is valid. It is called once at
// construction, before any file is touched.
func (s *RewriteSpec) Validate() error {
	if s.Method == "" && s.Keyword == "" {
		return errors.Errorf("either a method selector or a keyword is required")
	}

	if s.RegexReplace != nil {
		if _, err := regexp.Compile(s.RegexReplace.Old); err != nil {
			return errors.Errorf("compiling regex pattern: %w", err)
		}
	}

	return nil
}

// 🔍 Validate checks every spec in the script
func (s *Script) Validate() error {
	if len(s.Patches) == 0 {
		return errors.Errorf("script contains no patches")
	}
	for i, spec := range s.Patches {
		if err := spec.Validate(); err != nil {
			return errors.Errorf("patch %d (%s): %w", i, spec.String(), err)
		}
	}
	return nil
}

// 📝 String returns a short human description of the spec
func (s *RewriteSpec) String() string {
	if s.Name != "" {
		return s.Name
	}
	sel := s.Method
	if sel == "" {
		sel = "seek=" + s.Keyword
	}
	if s.DeleteMethod {
		return fmt.Sprintf("%s -> delete-method", sel)
	}
	return sel
}

// 🔧 YAMLParser implements the Parser interface for YAML scripts
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Script, error) {
	var script Script
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &script, nil
}
