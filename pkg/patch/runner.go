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

	"github.com/walteh/smalikit/pkg/config"
	"github.com/walteh/smalikit/pkg/log"
	"github.com/walteh/smalikit/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 🏃 Runner executes an ordered list of rewrite specs against one
// root. Specs run strictly in the order given; callers are
// responsible for ordering (e.g. a spec widening a method's register
// count must precede one that inserts code using the new registers).
type Runner struct {
	status  *status.Manager
	console *log.Logger
}

// 🏗️ NewRunner creates a new runner
func NewRunner(statusMgr *status.Manager, console *log.Logger) *Runner {
	return &Runner{
		status:  statusMgr,
		console: console,
	}
}

// 🏃 Run applies every spec in order. A configuration error or a
// missing root aborts the run; per-file failures inside a spec do
// not.
func (r *Runner) Run(ctx context.Context, root string, specs []*config.RewriteSpec) error {
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return errors.Errorf("run cancelled: %w", err)
		}

		r.console.StartRun(ctx, log.RunOperation{Spec: spec.String(), Root: root})

		p, err := New(spec, r.status, r.console)
		if err != nil {
			return errors.Errorf("patch %d (%s): %w", i, spec.String(), err)
		}

		if _, err := p.Run(ctx, root); err != nil {
			return errors.Errorf("patch %d (%s): %w", i, spec.String(), err)
		}

		r.console.EndRun(ctx)
		r.console.LogNewline()
	}

	summary := r.status.Summarize(ctx)
	r.console.Infof("%d files scanned, %d matched, %d rewritten, %d failed",
		summary.Scanned, summary.Matched, summary.Rewritten, summary.Failed)

	return nil
}
