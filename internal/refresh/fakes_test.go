package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajjensen13/ivsrefresh/internal/api"
	"github.com/ajjensen13/ivsrefresh/internal/model"
)

// memTable is an in-memory stand-in for the target table.
type memTable struct {
	mu         sync.Mutex
	rows       []model.TargetRow
	deleteErr  map[string]error
	failChunk  map[string]int
	chunks     map[string]int
	operations []string
}

func newMemTable() *memTable {
	return &memTable{deleteErr: map[string]error{}, failChunk: map[string]int{}, chunks: map[string]int{}}
}

func (m *memTable) DeleteWindow(_ context.Context, symbol string, window model.DateWindow) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, "delete "+symbol)

	if err := m.deleteErr[symbol]; err != nil {
		return 0, err
	}

	kept := m.rows[:0]
	var deleted int64
	for _, r := range m.rows {
		if r.Symbol.String == symbol && window.Contains(r.Date.Time) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return deleted, nil
}

func (m *memTable) WriteChunk(_ context.Context, rows []model.TargetRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}

	symbol := rows[0].Symbol.String
	m.chunks[symbol]++
	m.operations = append(m.operations, "write "+symbol)
	if m.failChunk[symbol] == m.chunks[symbol] {
		return fmt.Errorf("chunk %d of %q rejected", m.chunks[symbol], symbol)
	}

	seen := make(map[int64]bool, len(m.rows))
	for _, r := range m.rows {
		seen[r.RecordNo.Int] = true
	}
	for _, r := range rows {
		if seen[r.RecordNo.Int] {
			return fmt.Errorf("duplicate key record_no=%d", r.RecordNo.Int)
		}
		seen[r.RecordNo.Int] = true
	}

	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memTable) seed(symbol string, date time.Time, ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		var r model.TargetRow
		_ = r.Symbol.Set(symbol)
		_ = r.Region.Set("USA")
		_ = r.Date.Set(date)
		_ = r.RecordNo.Set(id)
		m.rows = append(m.rows, r)
	}
}

func (m *memTable) count(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Symbol.String == symbol {
			n++
		}
	}
	return n
}

func (m *memTable) recordNos(symbol string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret []int64
	for _, r := range m.rows {
		if r.Symbol.String == symbol {
			ret = append(ret, r.RecordNo.Int)
		}
	}
	return ret
}

// fakeProvider returns n rows per symbol dated inside the request window.
// recordNos sets the provider record_no of individual rows by index.
type fakeProvider struct {
	mu        sync.Mutex
	rows      map[string]int
	recordNos map[string]map[int]interface{}
	errs      map[string]error
	calls     []api.IVSRequest
}

func (p *fakeProvider) FetchIVS(_ context.Context, req api.IVSRequest) ([]model.RawRow, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if err := p.errs[req.Symbol]; err != nil {
		return nil, err
	}
	n := p.rows[req.Symbol]
	ret := make([]model.RawRow, n)
	for i := range ret {
		ret[i] = model.RawRow{
			"date":               req.Window.From.Format(model.DateLayout),
			"period":             90,
			"strike":             float64(100 + i),
			"Call/Put":           "P",
			"out-of-the-money %": 1.5,
			"IV":                 0.2,
			"delta":              -0.4,
		}
		if id, ok := p.recordNos[req.Symbol][i]; ok {
			ret[i]["record_no"] = id
		}
	}
	return ret, nil
}

var testWindow = model.DateWindow{
	From: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	To:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
}
