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
	"github.com/walteh/smalikit/pkg/patch"
	"github.com/walteh/smalikit/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// newRunCmd creates the run command: an ordered patch script applied
// against one root.
func newRunCmd() *cobra.Command {
	var (
		scriptPath string
		rootPath   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an ordered patch script against a directory tree",
		Long: `Run loads a YAML or HCL patch script and applies every patch in it,
strictly in the order written. Scripts are the place to sequence
dependent rewrites, e.g. widening a method's register count before
inserting code that uses the new registers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = zerolog.Ctx(ctx).With().Str("command", "run").Logger().WithContext(ctx)

			if rootPath == "" {
				return errors.Errorf("--path is required")
			}

			script, err := config.LoadScript(ctx, scriptPath)
			if err != nil {
				return errors.Errorf("loading script: %w", err)
			}

			console := newConsole()
			logger := zerolog.Ctx(ctx)
			statusMgr := status.New(logger)

			console.Header("running " + scriptPath)

			runner := patch.NewRunner(statusMgr, console)
			if err := runner.Run(ctx, rootPath, script.Patches); err != nil {
				return errors.Errorf("running script: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "path to the YAML or HCL patch script")
	cmd.Flags().StringVarP(&rootPath, "path", "p", "", "root directory to patch")
	_ = cmd.MarkFlagRequired("script")

	return cmd
}
