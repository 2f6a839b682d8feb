package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gotest.tools/v3/assert"

	"github.com/ajjensen13/ivsrefresh/internal/model"
)

func stubConfigMap(t *testing.T, f func(name string, v interface{}) error) {
	t.Helper()
	prev := readConfigMap
	readConfigMap = f
	t.Cleanup(func() { readConfigMap = prev })
}

func noConfigMap(string, interface{}) error {
	return os.ErrNotExist
}

func newViper(t *testing.T, file string) *viper.Viper {
	t.Helper()
	stubConfigMap(t, noConfigMap)
	v := viper.New()
	assert.NilError(t, configure(v, file))
	return v
}

func writeTempFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NilError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppConfig_Defaults(t *testing.T) {
	t.Setenv("TICKER_SQL", "SELECT symbol FROM etl.tickers")

	cfg, err := loadAppConfig(newViper(t, ""))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Region, "USA")
	assert.Equal(t, cfg.TargetTable, "etl.ivolatility_ivs")
	assert.Equal(t, cfg.ChunkSize, 5000)
	assert.Equal(t, cfg.MaxWorkers, 12)
	assert.Equal(t, cfg.filterBounds(), model.FilterBounds{OTMFrom: 0, OTMTo: 0, PeriodFrom: 90, PeriodTo: 90})
	assert.Equal(t, cfg.ProviderURL, "https://restapi.ivolatility.com")
	assert.Equal(t, cfg.RetryMaxElapsed, time.Minute)
}

func TestLoadAppConfig_Env(t *testing.T) {
	t.Setenv("TICKER_SQL", "SELECT symbol, region FROM etl.tickers")
	t.Setenv("REGION", "EUR")
	t.Setenv("MAX_WORKERS", "4")
	t.Setenv("CHUNK_SIZE", "250")
	t.Setenv("OTM_FROM", "-10")
	t.Setenv("OTM_TO", "10")
	t.Setenv("PERIOD_FROM", "30")
	t.Setenv("PERIOD_TO", "365")
	t.Setenv("TARGET_TABLE", "public.ivs")
	t.Setenv("REQUEST_INTERVAL", "250ms")
	t.Setenv("IVOL_API_KEY", "secret")

	v := newViper(t, "")
	cfg, err := loadAppConfig(v)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Region, "EUR")
	assert.Equal(t, cfg.MaxWorkers, 4)
	assert.Equal(t, cfg.ChunkSize, 250)
	assert.Equal(t, cfg.filterBounds(), model.FilterBounds{OTMFrom: -10, OTMTo: 10, PeriodFrom: 30, PeriodTo: 365})
	assert.Equal(t, cfg.TargetTable, "public.ivs")
	assert.Equal(t, cfg.RequestInterval, 250*time.Millisecond)

	secrets, err := provideAppSecrets(v)
	assert.NilError(t, err)
	assert.Equal(t, secrets.ApiKey, "secret")
}

func TestLoadAppConfig_File(t *testing.T) {
	path := writeTempFile(t, "config.yaml", `
ticker_sql: SELECT symbol FROM etl.tickers
date_from: "2024-01-02"
date_to: "2024-01-05"
max_workers: 3
`)
	t.Setenv("MAX_WORKERS", "")

	cfg, err := loadAppConfig(newViper(t, path))
	assert.NilError(t, err)
	assert.Equal(t, cfg.DateFrom, "2024-01-02")
	assert.Equal(t, cfg.DateTo, "2024-01-05")
	assert.Equal(t, cfg.MaxWorkers, 3)
}

func TestLoadAppConfig_ConfigMap(t *testing.T) {
	stubConfigMap(t, func(name string, v interface{}) error {
		assert.Equal(t, name, "ivsrefresh-config-cm.json")
		return json.Unmarshal([]byte(`{"ticker_sql": "SELECT symbol FROM etl.tickers", "region": "EUR", "chunk_size": 1000}`), v)
	})
	t.Setenv("CHUNK_SIZE", "250")

	v := viper.New()
	assert.NilError(t, configure(v, ""))
	cfg, err := loadAppConfig(v)
	assert.NilError(t, err)
	assert.Equal(t, cfg.TickerSQL, "SELECT symbol FROM etl.tickers")
	assert.Equal(t, cfg.Region, "EUR")
	assert.Equal(t, cfg.ChunkSize, 250)
}

func TestConfigure_ConfigMapError(t *testing.T) {
	stubConfigMap(t, func(string, interface{}) error { return errors.New("permission denied") })

	err := configure(viper.New(), "")
	assert.ErrorContains(t, err, "failed to read config map")
}

func TestConfigure_MissingFile(t *testing.T) {
	err := configure(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func validConfig() appConfig {
	return appConfig{
		Region:        "USA",
		TickerSQL:     "SELECT symbol FROM etl.tickers",
		TargetTable:   "etl.ivolatility_ivs",
		MaxWorkers:    12,
		ChunkSize:     5000,
		PeriodFrom:    90,
		PeriodTo:      90,
		RecordNoBlock: 1 << 20,
	}
}

func TestAppConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*appConfig)
		want   string
	}{
		{"missing ticker sql", func(c *appConfig) { c.TickerSQL = "" }, "ticker_sql is required"},
		{"missing region", func(c *appConfig) { c.Region = "" }, "region is required"},
		{"bad table", func(c *appConfig) { c.TargetTable = "a.b.c" }, "target_table"},
		{"no workers", func(c *appConfig) { c.MaxWorkers = 0 }, "max_workers must be >= 1"},
		{"no chunk", func(c *appConfig) { c.ChunkSize = 0 }, "chunk_size must be >= 1"},
		{"otm bounds", func(c *appConfig) { c.OTMFrom, c.OTMTo = 5, -5 }, "otm_from (5) cannot exceed otm_to (-5)"},
		{"period bounds", func(c *appConfig) { c.PeriodFrom, c.PeriodTo = 365, 30 }, "period_from (365) cannot exceed period_to (30)"},
		{"negative interval", func(c *appConfig) { c.RequestInterval = -time.Second }, "request_interval must be >= 0"},
		{"no block", func(c *appConfig) { c.RecordNoBlock = 0 }, "record_no_block must be >= 1"},
	}

	cfg := validConfig()
	assert.NilError(t, cfg.Validate())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}

func TestAppConfig_DateWindow(t *testing.T) {
	tz := time.FixedZone("EST", -5*60*60)
	// 02:00 UTC on Jan 3 is still Jan 2 in EST.
	now := time.Date(2024, 1, 3, 2, 0, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		cfg := validConfig()
		w, err := cfg.dateWindow(tz, now)
		assert.NilError(t, err)
		assert.Equal(t, w.String(), "2024-01-01..2024-01-02")
	})

	t.Run("explicit", func(t *testing.T) {
		cfg := validConfig()
		cfg.DateFrom, cfg.DateTo = "2023-12-01", "2023-12-31"
		w, err := cfg.dateWindow(tz, now)
		assert.NilError(t, err)
		assert.Equal(t, w.String(), "2023-12-01..2023-12-31")
	})

	t.Run("inverted", func(t *testing.T) {
		cfg := validConfig()
		cfg.DateFrom, cfg.DateTo = "2024-01-05", "2024-01-02"
		_, err := cfg.dateWindow(tz, now)
		assert.Assert(t, errors.Is(err, model.ErrInvalidWindow), "got %v", err)
	})

	t.Run("unparsable", func(t *testing.T) {
		cfg := validConfig()
		cfg.DateFrom = "01/02/2024"
		_, err := cfg.dateWindow(tz, now)
		assert.ErrorContains(t, err, "failed to parse date_from")
	})
}

func TestSymbols_Sorted(t *testing.T) {
	items := []model.WorkItem{{Symbol: "MSFT", Region: "USA"}, {Symbol: "AAPL", Region: "USA"}, {Symbol: "IBM", Region: "USA"}}
	assert.DeepEqual(t, symbols(items), []string{"AAPL", "IBM", "MSFT"})
}
