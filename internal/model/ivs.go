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

package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgtype"
)

// WorkItem is one symbol to refresh.
type WorkItem struct {
	Symbol string `yaml:"symbol,omitempty" json:"symbol,omitempty"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
}

func (w WorkItem) String() string {
	return w.Symbol + "/" + w.Region
}

var ErrInvalidWindow = errors.New("invalid date window")

// DateWindow is the inclusive date range a run deletes and fetches.
type DateWindow struct {
	From time.Time `yaml:"from,omitempty" json:"from,omitempty"`
	To   time.Time `yaml:"to,omitempty" json:"to,omitempty"`
}

func (w DateWindow) Validate() error {
	switch {
	case w.From.IsZero():
		return fmt.Errorf("%w: missing from date", ErrInvalidWindow)
	case w.To.IsZero():
		return fmt.Errorf("%w: missing to date", ErrInvalidWindow)
	case Day(w.To).Before(Day(w.From)):
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidWindow, w.From.Format(DateLayout), w.To.Format(DateLayout))
	default:
		return nil
	}
}

// Contains reports whether t falls on a day inside the window.
func (w DateWindow) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(w.From)) && !d.After(Day(w.To))
}

func (w DateWindow) String() string {
	return w.From.Format(DateLayout) + ".." + w.To.Format(DateLayout)
}

const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FilterBounds are the term and moneyness bounds sent with every provider request.
type FilterBounds struct {
	OTMFrom    int `yaml:"otm_from" json:"otm_from"`
	OTMTo      int `yaml:"otm_to" json:"otm_to"`
	PeriodFrom int `yaml:"period_from" json:"period_from"`
	PeriodTo   int `yaml:"period_to" json:"period_to"`
}

// RawRow is one provider record keyed by the provider's column names.
type RawRow map[string]interface{}

// TargetRow is a row of the implied volatility surface table.
type TargetRow struct {
	Symbol   pgtype.Text
	Region   pgtype.Text
	Date     pgtype.Date
	Period   pgtype.Int4
	Strike   pgtype.Float8
	CallPut  pgtype.Text
	OTM      pgtype.Float8
	IV       pgtype.Float8
	Delta    pgtype.Float8
	RecordNo pgtype.Int8
}

// TargetColumns lists the table columns in the order returned by TargetRow.Values.
var TargetColumns = []string{"symbol", "region", "date", "period", "strike", "call_put", "otm", "iv", "delta", "record_no"}

func (r TargetRow) Values() []interface{} {
	return []interface{}{r.Symbol, r.Region, r.Date, r.Period, r.Strike, r.CallPut, r.OTM, r.IV, r.Delta, r.RecordNo}
}
