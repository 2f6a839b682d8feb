package cmd

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gotest.tools/v3/assert"

	"github.com/ajjensen13/ivsrefresh/internal/model"
)

func TestProvideDataSourceName(t *testing.T) {
	cfg := validConfig()
	cfg.DataSourceName = "postgres://db.internal:5432/market?sslmode=disable"

	dsn, err := provideDataSourceName(url.UserPassword("etl", "pw"), &cfg)
	assert.NilError(t, err)
	assert.Equal(t, dsn.String(), "postgres://etl:pw@db.internal:5432/market?sslmode=disable")

	dsn, err = provideDataSourceName(nil, &cfg)
	assert.NilError(t, err)
	assert.Assert(t, dsn.User == nil)

	cfg.DataSourceName = ""
	_, err = provideDataSourceName(nil, &cfg)
	assert.ErrorContains(t, err, "data_source_name is required")
}

func TestProvideDbSecrets_InlineCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.DataSourceName = "postgres://etl:pw@db.internal/market"

	ui, err := provideDbSecrets(&cfg)
	assert.NilError(t, err)
	assert.Assert(t, ui == nil)
}

func TestProvideTimezone(t *testing.T) {
	cfg := validConfig()
	tz, err := provideTimezone(&cfg)
	assert.NilError(t, err)
	assert.Equal(t, tz, time.UTC)

	cfg.Timezone = "Not/AZone"
	_, err = provideTimezone(&cfg)
	assert.Assert(t, err != nil)
}

func TestProvideBackoffFactory(t *testing.T) {
	cfg := validConfig()
	cfg.RetryMaxElapsed = 5 * time.Second

	f := provideBackoffFactory(&cfg)
	a, b := f(), f()
	assert.Assert(t, a != b, "each call must return a fresh backoff")

	eb, ok := a.(*backoff.ExponentialBackOff)
	assert.Assert(t, ok)
	assert.Equal(t, eb.MaxElapsedTime, 5*time.Second)
	assert.Equal(t, eb.InitialInterval, time.Second)
}

func TestLogSummary(t *testing.T) {
	summary := model.RunSummary{
		TotalRowsWritten: 100,
		Results: []model.RefreshResult{
			{Symbol: "AAPL", Region: "USA", RowsWritten: 100},
			{Symbol: "MSFT", Region: "USA"},
			{Symbol: "XXXX", Region: "USA", Phase: model.PhaseFetch, Err: errors.New("boom")},
		},
		Skipped: []model.WorkItem{{Symbol: "IBM", Region: "USA"}},
	}
	assert.Equal(t, logSummary(context.Background(), summary), 1)
}
