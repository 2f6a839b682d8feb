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

package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgtype"

	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/recordno"
)

// Renames maps lower-cased provider column names to target column names.
// Columns not listed are matched on their lower-cased name.
var Renames = map[string]string{
	"call/put":           "call_put",
	"callput":            "call_put",
	"out-of-the-money %": "otm",
	"out-of-the-money":   "otm",
	"recordno":           "record_no",
	"record no":          "record_no",
}

// Result is a reconciled row set. Dropped counts provider rows without a usable
// date inside the window.
type Result struct {
	Rows    []model.TargetRow
	Dropped int
}

type Reconciler struct {
	IDs *recordno.Namespace
}

// Reconcile shapes raw into target rows for item. Symbol and region always come
// from item. Missing or unparsable columns are stored as NULL. A provider
// record_no is kept only when it lies in the symbol's block and is not
// repeated; all other rows are numbered from the start of the block, skipping
// the kept ones. Input order is preserved.
func (r Reconciler) Reconcile(raw []model.RawRow, item model.WorkItem, window model.DateWindow) (Result, error) {
	rows := make([]model.TargetRow, 0, len(raw))
	provided := make([]interface{}, 0, len(raw))
	dropped := 0

	for _, rr := range raw {
		cols := rename(rr)

		var out model.TargetRow
		_ = out.Symbol.Set(item.Symbol)
		_ = out.Region.Set(item.Region)

		d, ok := parseDate(cols["date"])
		if !ok || !window.Contains(d) {
			dropped++
			continue
		}
		_ = out.Date.Set(d)

		setInt4(&out.Period, cols["period"])
		setFloat8(&out.Strike, cols["strike"])
		setText(&out.CallPut, cols["call_put"])
		setFloat8(&out.OTM, cols["otm"])
		setFloat8(&out.IV, cols["iv"])
		setFloat8(&out.Delta, cols["delta"])

		rows = append(rows, out)
		provided = append(provided, cols["record_no"])
	}

	if len(rows) == 0 {
		return Result{Rows: rows, Dropped: dropped}, nil
	}

	counter, err := r.IDs.Counter(item.Symbol)
	if err != nil {
		return Result{}, fmt.Errorf("failed to assign record_no to %d rows of %q: %w", len(rows), item.Symbol, err)
	}

	var needID []int
	kept := make(map[int64]struct{}, len(rows))
	for i, v := range provided {
		id, ok := parseInt(v)
		if _, dup := kept[id]; ok && !dup && counter.Contains(id) {
			kept[id] = struct{}{}
			_ = rows[i].RecordNo.Set(id)
			continue
		}
		needID = append(needID, i)
	}

	ids, err := counter.Assign(len(needID), func(id int64) bool {
		_, ok := kept[id]
		return ok
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to assign record_no to %d rows of %q: %w", len(needID), item.Symbol, err)
	}
	for i, ndx := range needID {
		_ = rows[ndx].RecordNo.Set(ids[i])
	}

	return Result{Rows: rows, Dropped: dropped}, nil
}

func rename(in model.RawRow) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		name := strings.ToLower(strings.TrimSpace(k))
		if target, ok := Renames[name]; ok {
			name = target
		}
		out[name] = v
	}
	return out
}

var dateLayouts = []string{
	model.DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

func parseDate(v interface{}) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return model.Day(v), !v.IsZero()
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return model.Day(t), true
			}
		}
	}
	return time.Time{}, false
}

func parseFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), !math.IsNaN(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

func parseInt(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i, true
		}
	}
	f, ok := parseFloat(v)
	if !ok || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func setFloat8(dst *pgtype.Float8, v interface{}) {
	if f, ok := parseFloat(v); ok {
		_ = dst.Set(f)
		return
	}
	*dst = pgtype.Float8{Status: pgtype.Null}
}

func setInt4(dst *pgtype.Int4, v interface{}) {
	if i, ok := parseInt(v); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
		_ = dst.Set(int32(i))
		return
	}
	*dst = pgtype.Int4{Status: pgtype.Null}
}

func setText(dst *pgtype.Text, v interface{}) {
	switch v := v.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			_ = dst.Set(s)
			return
		}
	case nil:
	default:
		_ = dst.Set(fmt.Sprint(v))
		return
	}
	*dst = pgtype.Text{Status: pgtype.Null}
}
