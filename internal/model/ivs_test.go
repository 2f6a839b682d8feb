package model

import (
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateWindow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		window  DateWindow
		wantErr bool
	}{
		{"single day", DateWindow{From: date(2024, 1, 2), To: date(2024, 1, 2)}, false},
		{"range", DateWindow{From: date(2024, 1, 2), To: date(2024, 1, 9)}, false},
		{"same day different hours", DateWindow{From: date(2024, 1, 2).Add(20 * time.Hour), To: date(2024, 1, 2)}, false},
		{"missing from", DateWindow{To: date(2024, 1, 2)}, true},
		{"missing to", DateWindow{From: date(2024, 1, 2)}, true},
		{"reversed", DateWindow{From: date(2024, 1, 9), To: date(2024, 1, 2)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if !tt.wantErr {
				assert.NilError(t, err)
				return
			}
			assert.Assert(t, errors.Is(err, ErrInvalidWindow), "got %v", err)
		})
	}
}

func TestDateWindow_Contains(t *testing.T) {
	w := DateWindow{From: date(2024, 1, 2), To: date(2024, 1, 4)}

	assert.Assert(t, w.Contains(date(2024, 1, 2)))
	assert.Assert(t, w.Contains(date(2024, 1, 3).Add(13*time.Hour)))
	assert.Assert(t, w.Contains(date(2024, 1, 4).Add(23*time.Hour)))
	assert.Assert(t, !w.Contains(date(2024, 1, 1)))
	assert.Assert(t, !w.Contains(date(2024, 1, 5)))
}

func TestRunSummary_Failed(t *testing.T) {
	s := RunSummary{Results: []RefreshResult{
		{Symbol: "AAPL", RowsWritten: 100},
		{Symbol: "XXXX", Phase: PhaseFetch, Err: errors.New("boom")},
	}}

	failed := s.Failed()
	assert.Equal(t, len(failed), 1)
	assert.Equal(t, failed[0].Symbol, "XXXX")
}
