/*
Copyright © 2020 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package refresh

import (
	"cloud.google.com/go/logging"
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/util"
)

const DefaultConcurrency = 12

var ErrNoWorkItems = errors.New("no symbols to refresh")

type Refresher interface {
	Refresh(ctx context.Context, item model.WorkItem, window model.DateWindow) model.RefreshResult
}

type RefresherFunc func(ctx context.Context, item model.WorkItem, window model.DateWindow) model.RefreshResult

func (f RefresherFunc) Refresh(ctx context.Context, item model.WorkItem, window model.DateWindow) model.RefreshResult {
	return f(ctx, item, window)
}

// Tally is the running total of rows written in a run.
type Tally struct {
	mu   sync.Mutex
	rows int
}

func (t *Tally) Add(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows += n
	return t.rows
}

func (t *Tally) Rows() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// Orchestrator runs one Refresher call per work item with at most Concurrency
// in flight.
type Orchestrator struct {
	Refresher   Refresher
	Concurrency int
	Progress    *Tally
}

// Run refreshes every item and returns once all submitted items have
// completed. Results are in completion order. A failed item never stops the
// run. Cancelling ctx stops submission; items already running finish on a
// context that is not cancelled, and the rest are listed in Skipped.
func (o *Orchestrator) Run(ctx context.Context, items []model.WorkItem, window model.DateWindow) (model.RunSummary, error) {
	if len(items) == 0 {
		return model.RunSummary{}, ErrNoWorkItems
	}
	if err := window.Validate(); err != nil {
		return model.RunSummary{}, err
	}

	n := o.Concurrency
	if n <= 0 {
		n = DefaultConcurrency
	}
	tally := o.Progress
	if tally == nil {
		tally = &Tally{}
	}

	util.Logf(ctx, logging.Info, "refreshing %d symbols (%v) with %d workers", len(items), window, n)

	results := make(chan model.RefreshResult, n)
	collected := make(chan []model.RefreshResult)
	go func() {
		ret := make([]model.RefreshResult, 0, len(items))
		for r := range results {
			total := tally.Add(r.RowsWritten)
			if r.Err != nil {
				util.Logf(ctx, logging.Error, "symbol=%s failed during %s after writing %d rows: %v [running total=%d]", r.Symbol, r.Phase, r.RowsWritten, r.Err, total)
			} else {
				util.Logf(ctx, logging.Default, "symbol=%s: inserted %d rows [running total=%d]", r.Symbol, r.RowsWritten, total)
			}
			ret = append(ret, r)
		}
		collected <- ret
	}()

	taskCtx := context.WithoutCancel(ctx)
	sem := semaphore.NewWeighted(int64(n))
	var g errgroup.Group
	var skipped []model.WorkItem
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			skipped = items[i:]
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			skipped = items[i:]
			break
		}

		item := item
		g.Go(func() error {
			defer sem.Release(1)
			results <- o.refresh(taskCtx, item, window)
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	summary := model.RunSummary{Results: <-collected, Skipped: skipped}
	for _, r := range summary.Results {
		summary.TotalRowsWritten += r.RowsWritten
	}

	if len(skipped) > 0 {
		return summary, fmt.Errorf("refresh cancelled with %d of %d symbols not submitted: %w", len(skipped), len(items), ctx.Err())
	}
	return summary, nil
}

func (o *Orchestrator) refresh(ctx context.Context, item model.WorkItem, window model.DateWindow) (result model.RefreshResult) {
	defer func() {
		if r := recover(); r != nil {
			result = model.RefreshResult{Symbol: item.Symbol, Region: item.Region, Err: fmt.Errorf("panic while refreshing %q: %v", item.Symbol, r)}
		}
	}()
	return o.Refresher.Refresh(ctx, item, window)
}
