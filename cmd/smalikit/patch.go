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

package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/smalikit/pkg/config"
	"github.com/walteh/smalikit/pkg/log"
	"github.com/walteh/smalikit/pkg/patch"
	"github.com/walteh/smalikit/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// patchFlags holds every flag of the patch command, one flag per
// RewriteSpec field.
type patchFlags struct {
	path string
	file string

	method     string
	seek       string
	returnType string
	nameFilter string
	ignore     []string
	recursive  bool

	rewriteBody  string
	replaceOld   string
	replaceWith  string
	regexPattern string
	regexWith    string
	deleteStr    string
	afterLine    string
	afterCode    string
	beforeLine   string
	beforeCode   string
	atLine       string
	atCode       string
	deleteMethod bool
}

// newPatchCmd creates the patch command: one rewrite spec built from
// flags, applied to a file or a directory tree.
func newPatchCmd() *cobra.Command {
	flags := &patchFlags{}

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Apply one method rewrite to a file or directory tree",
		Long: `Patch locates method blocks matching the given selector and applies
the configured body transformations, writing files back only when
content actually changed. It will:
1. Validate the selector (a method name or a keyword is required)
2. Walk the root, skipping files that cannot match
3. Transform every matched block and splice it back by offset
4. Report every match and every write`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = zerolog.Ctx(ctx).With().Str("command", "patch").Logger().WithContext(ctx)

			root := flags.path
			if flags.file != "" {
				root = flags.file
			}
			if root == "" {
				return errors.Errorf("either --path or --file is required")
			}

			spec := flags.toSpec(cmd)

			console := newConsole()
			logger := zerolog.Ctx(ctx)
			statusMgr := status.New(logger)

			p, err := patch.New(spec, statusMgr, console)
			if err != nil {
				return errors.Errorf("building patcher: %w", err)
			}

			console.StartRun(ctx, log.RunOperation{Spec: spec.String(), Root: root})
			if _, err := p.Run(ctx, root); err != nil {
				return errors.Errorf("patching %s: %w", root, err)
			}
			console.EndRun(ctx)

			summary := statusMgr.Summarize(ctx)
			console.Infof("%d files scanned, %d matched, %d rewritten, %d failed",
				summary.Scanned, summary.Matched, summary.Rewritten, summary.Failed)

			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.path, "path", "p", "", "root directory to patch")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "specific file to patch (overrides --path)")

	cmd.Flags().StringVarP(&flags.method, "method", "m", "", "method name or full signature to target")
	cmd.Flags().StringVar(&flags.seek, "seek", "", "select methods whose body contains this string")
	cmd.Flags().StringVar(&flags.returnType, "return-type", "", "filter by smali return descriptor (e.g. Z, V, I)")
	cmd.Flags().StringVar(&flags.nameFilter, "name-filter", "", "only patch files whose name contains this substring")
	cmd.Flags().StringArrayVar(&flags.ignore, "ignore", nil, "glob pattern for files to skip (repeatable)")
	cmd.Flags().BoolVar(&flags.recursive, "recursive", false, "recurse into subdirectories (directories always recurse)")

	cmd.Flags().StringVar(&flags.rewriteBody, "rewrite-body", "", "replace the entire method body")
	cmd.Flags().StringVar(&flags.replaceOld, "replace", "", "literal string to replace in the body")
	cmd.Flags().StringVar(&flags.replaceWith, "replace-with", "", "replacement for --replace")
	cmd.Flags().StringVar(&flags.regexPattern, "regex", "", "regex pattern to replace in the body")
	cmd.Flags().StringVar(&flags.regexWith, "regex-with", "", "replacement for --regex, $1-style backreferences supported")
	cmd.Flags().StringVar(&flags.deleteStr, "delete-str", "", "delete all occurrences of this string")
	cmd.Flags().StringVar(&flags.afterLine, "after-line", "", "anchor to insert a line after")
	cmd.Flags().StringVar(&flags.afterCode, "after-code", "", "line to insert after --after-line")
	cmd.Flags().StringVar(&flags.beforeLine, "before-line", "", "anchor to insert a line before")
	cmd.Flags().StringVar(&flags.beforeCode, "before-code", "", "line to insert before --before-line")
	cmd.Flags().StringVar(&flags.atLine, "at-line", "", "line index to insert code at")
	cmd.Flags().StringVar(&flags.atCode, "at-code", "", "code to insert at --at-line, \\n separated")
	cmd.Flags().BoolVar(&flags.deleteMethod, "delete-method", false, "delete every matched method entirely")

	return cmd
}

// toSpec builds a RewriteSpec from the parsed flags. Transform fields
// become pointers only when their flag was actually set, so an empty
// string remains a valid transform argument.
func (f *patchFlags) toSpec(cmd *cobra.Command) *config.RewriteSpec {
	spec := &config.RewriteSpec{
		Method:         f.method,
		Keyword:        f.seek,
		ReturnType:     f.returnType,
		NameFilter:     f.nameFilter,
		IgnorePatterns: f.ignore,
		Recursive:      f.recursive,
		DeleteMethod:   f.deleteMethod,
	}

	if cmd.Flags().Changed("rewrite-body") {
		spec.RewriteBody = &f.rewriteBody
	}
	if cmd.Flags().Changed("replace") {
		spec.Replace = &config.Replacement{Old: f.replaceOld, New: f.replaceWith}
	}
	if cmd.Flags().Changed("regex") {
		spec.RegexReplace = &config.Replacement{Old: f.regexPattern, New: f.regexWith}
	}
	if cmd.Flags().Changed("delete-str") {
		spec.DeleteString = &f.deleteStr
	}
	if cmd.Flags().Changed("after-line") {
		spec.AfterLine = &config.Insertion{Anchor: f.afterLine, Code: f.afterCode}
	}
	if cmd.Flags().Changed("before-line") {
		spec.BeforeLine = &config.Insertion{Anchor: f.beforeLine, Code: f.beforeCode}
	}
	if cmd.Flags().Changed("at-line") {
		spec.AtLine = &config.LineInsertion{Index: f.atLine, Code: f.atCode}
	}

	return spec
}
