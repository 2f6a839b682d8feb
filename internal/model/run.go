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
	"fmt"
)

type Phase string

const (
	PhaseDelete    Phase = "delete"
	PhaseFetch     Phase = "fetch"
	PhaseReconcile Phase = "reconcile"
	PhaseLoad      Phase = "load"
)

// RefreshResult is the outcome of refreshing one symbol. Err is nil on success,
// including when the provider had no rows.
type RefreshResult struct {
	Symbol      string
	Region      string
	RowsWritten int
	RowsDropped int
	Phase       Phase
	Err         error
}

func (r RefreshResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s/%s: %d rows written, %s failed: %v", r.Symbol, r.Region, r.RowsWritten, r.Phase, r.Err)
	}
	return fmt.Sprintf("%s/%s: %d rows written", r.Symbol, r.Region, r.RowsWritten)
}

type RunSummary struct {
	TotalRowsWritten int
	Results          []RefreshResult
	Skipped          []WorkItem
}

func (s RunSummary) Failed() []RefreshResult {
	var ret []RefreshResult
	for _, r := range s.Results {
		if r.Err != nil {
			ret = append(ret, r)
		}
	}
	return ret
}
