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

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	matchIndent = 4  // spaces to indent match entries
	nameWidth   = 30 // Base width for filename
	sigWidth    = 60 // Width for method signature
)

// 🎯 MatchOperation represents one matched method block for logging
type MatchOperation struct {
	Path      string // File the block was found in
	Signature string // Matched method declaration
	Status    string // Applied outcome (patch/delete/skip)
	IsDeleted bool   // Whether the whole method was removed
	IsChanged bool   // Whether the body was altered
	IsFailed  bool   // Whether the file failed afterwards
}

// 📦 RunOperation represents one rewrite-spec run for logging
type RunOperation struct {
	Spec string // Spec description
	Root string // Root path being patched
}

// 🎯 Logger handles structured logging with console output. The
// console writer is injected so tests can capture output.
type Logger struct {
	zlog      zerolog.Logger
	console   io.Writer
	mu        sync.Mutex
	currentOp *RunOperation
	matches   []MatchOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// 📝 formatMatchOperation formats a matched block for display
func (l *Logger) formatMatchOperation(op MatchOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.IsFailed:
		symbol = '!'
		symbolColor = color.FgRed
	case op.IsDeleted:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.IsChanged:
		symbol = '⟳'
		symbolColor = color.FgBlue
	default:
		symbol = '-'
		symbolColor = color.FgYellow
	}

	return fmt.Sprintf("%s%s %s %s",
		fmt.Sprintf("%*s", matchIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(color.Bold).Sprint(fmt.Sprintf("%-*s", sigWidth, op.Signature)))
}

// 📝 LogMatch logs a matched method block
func (l *Logger) LogMatch(ctx context.Context, op MatchOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.matches = append(l.matches, op)

	fmt.Fprintln(l.console, l.formatMatchOperation(op))

	l.zlog.Info().
		Str("file", op.Path).
		Str("signature", op.Signature).
		Str("status", op.Status).
		Bool("is_deleted", op.IsDeleted).
		Bool("is_changed", op.IsChanged).
		Msg("method matched")
}

// 📝 StartRun starts a new rewrite-spec run
func (l *Logger) StartRun(ctx context.Context, op RunOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.matches = nil

	fmt.Fprintf(l.console, "[patching %s]\n",
		color.New(color.FgCyan).Sprint(op.Root))

	fmt.Fprintf(l.console, "%s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Spec))

	l.zlog.Info().
		Str("spec", op.Spec).
		Str("root", op.Root).
		Msg("starting rewrite run")
}

// 📝 EndRun ends the current rewrite-spec run
func (l *Logger) EndRun(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	l.zlog.Info().
		Str("spec", l.currentOp.Spec).
		Int("matches", len(l.matches)).
		Msg("rewrite run complete")

	l.currentOp = nil
	l.matches = nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("smalikit")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
