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
	"fmt"

	"github.com/ajjensen13/ivsrefresh/internal/api"
	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/transform"
	"github.com/ajjensen13/ivsrefresh/internal/util"
)

type Deleter interface {
	DeleteWindow(ctx context.Context, symbol string, window model.DateWindow) (int64, error)
}

type Fetcher interface {
	FetchIVS(ctx context.Context, req api.IVSRequest) ([]model.RawRow, error)
}

type Reconciler interface {
	Reconcile(raw []model.RawRow, item model.WorkItem, window model.DateWindow) (transform.Result, error)
}

type Loader interface {
	Load(ctx context.Context, rows []model.TargetRow) (int, error)
}

// Task refreshes one symbol: delete its window, fetch, reconcile and load.
type Task struct {
	Store      Deleter
	Provider   Fetcher
	Reconciler Reconciler
	Loader     Loader
	Filter     model.FilterBounds
}

// Refresh never returns an error of its own; every failure, including a panic,
// is reported in the result together with the phase it happened in.
func (t *Task) Refresh(ctx context.Context, item model.WorkItem, window model.DateWindow) (result model.RefreshResult) {
	result = model.RefreshResult{Symbol: item.Symbol, Region: item.Region}
	ctx = util.WithLoggerValue(ctx, "symbol", item.Symbol)
	ctx = util.WithLoggerValue(ctx, "region", item.Region)

	phase := model.PhaseDelete
	defer func() {
		if r := recover(); r != nil {
			result.Phase = phase
			result.Err = fmt.Errorf("panic while refreshing %q: %v", item.Symbol, r)
		}
	}()
	fail := func(err error) model.RefreshResult {
		result.Phase = phase
		result.Err = err
		return result
	}

	deleted, err := t.Store.DeleteWindow(ctx, item.Symbol, window)
	if err != nil {
		return fail(err)
	}
	util.Logf(ctx, logging.Debug, "deleted %d existing %q rows (%v)", deleted, item.Symbol, window)

	phase = model.PhaseFetch
	raw, err := t.Provider.FetchIVS(ctx, api.IVSRequest{Symbol: item.Symbol, Region: item.Region, Window: window, Filter: t.Filter})
	if err != nil {
		return fail(err)
	}
	if len(raw) == 0 {
		util.Logf(ctx, logging.Info, "no data for %q in range %v", item.Symbol, window)
		return result
	}

	phase = model.PhaseReconcile
	rec, err := t.Reconciler.Reconcile(raw, item, window)
	if err != nil {
		return fail(err)
	}
	result.RowsDropped = rec.Dropped
	if rec.Dropped > 0 {
		util.Logf(ctx, logging.Warning, "dropped %d of %d %q rows without a date in %v", rec.Dropped, len(raw), item.Symbol, window)
	}

	phase = model.PhaseLoad
	result.RowsWritten, err = t.Loader.Load(ctx, rec.Rows)
	if err != nil {
		return fail(err)
	}

	return result
}
