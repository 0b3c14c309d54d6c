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
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	smalilog "github.com/walteh/smalikit/pkg/log"
)

var (
	// Flags
	debug bool
)

// newRootCmd creates the root command with all subcommands attached
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smalikit",
		Short: "Pattern-based smali method rewriter",
		Long: `smalikit locates method blocks in smali source files by name,
signature or keyword and applies declarative body transformations,
rewriting files in place only when content actually changed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	cmd.AddCommand(newPatchCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging configures zerolog based on flags
func setupLogging() {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}

// consoleLevel maps the debug flag onto the console logger level
func consoleLevel() zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// newConsole builds the injected console logger used by all commands
func newConsole() *smalilog.Logger {
	return smalilog.New(os.Stdout, consoleLevel())
}

func main() {
	ctx := context.Background()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
