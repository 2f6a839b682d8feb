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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"cloud.google.com/go/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/recordno"
	"github.com/ajjensen13/ivsrefresh/internal/refresh"
	"github.com/ajjensen13/ivsrefresh/internal/util"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the configured date window for every symbol",
	Run: func(cmd *cobra.Command, args []string) {
		lg, cleanup := logger()
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = util.WithLogger(ctx, lg)
		ctx = util.WithLoggerValue(ctx, "run_id", uuid.NewString())

		cfg, err := appConfiguration()
		if err != nil {
			panic(lg.ErrorErr(err))
		}

		window, err := dateWindow(cfg)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to resolve date window: %w", err)))
		}

		st, cleanupStore, err := openStore(ctx, cfg)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to open target store: %w", err)))
		}
		defer cleanupStore()

		items, err := st.Symbols(ctx, cfg.TickerSQL, cfg.Region)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to query symbols: %w", err)))
		}
		if len(items) == 0 {
			panic(lg.ErrorErr(refresh.ErrNoWorkItems))
		}

		after, err := st.MaxRecordNo(ctx)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to query max record_no: %w", err)))
		}

		ns, err := recordno.NewNamespace(after, cfg.RecordNoBlock, cfg.RecordNoMax, symbols(items))
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to allocate record_no namespace: %w", err)))
		}

		if cfg.RecordNoMax > 0 && ns.RunsLeft() < minRunsLeft {
			util.Logf(ctx, logging.Warning, "record_no_max %d leaves room for about %d more runs of %d symbols; lower record_no_block", cfg.RecordNoMax, ns.RunsLeft(), len(items))
		}

		client, cleanupClient, err := apiClient(lg, cfg)
		if err != nil {
			panic(lg.ErrorErr(fmt.Errorf("failed to setup provider client: %w", err)))
		}
		defer cleanupClient()

		util.Logf(ctx, logging.Default, "refreshing %d symbols into %s (%v) [record_no after %d]", len(items), st.Table(), window, after)

		summary, err := orchestrator(cfg, st, client, ns).Run(ctx, items, window)
		failed := logSummary(ctx, summary)
		if err != nil {
			panic(lg.ErrorErr(err))
		}
		if failed > 0 {
			panic(lg.ErrorErr(fmt.Errorf("%d of %d symbols failed", failed, len(items))))
		}
	},
}

const minRunsLeft = 90

// symbols returns the distinct symbols of items in sorted order so the
// record_no blocks do not depend on the order the symbol query returned.
func symbols(items []model.WorkItem) []string {
	ret := make([]string, 0, len(items))
	for _, item := range items {
		ret = append(ret, item.Symbol)
	}
	sort.Strings(ret)
	return ret
}

func logSummary(ctx context.Context, summary model.RunSummary) int {
	failed := summary.Failed()
	for _, r := range failed {
		util.Logf(ctx, logging.Error, "symbol=%s failed: %v", r.Symbol, r.Err)
	}
	for _, item := range summary.Skipped {
		util.Logf(ctx, logging.Warning, "symbol=%s skipped", item.Symbol)
	}
	util.Logf(ctx, logging.Notice, "inserted %d rows for %d symbols [failed=%d skipped=%d]", summary.TotalRowsWritten, len(summary.Results), len(failed), len(summary.Skipped))
	return len(failed)
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
