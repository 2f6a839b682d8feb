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
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ajjensen13/ivsrefresh/internal/api"
	"github.com/ajjensen13/ivsrefresh/internal/load"
	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/recordno"
	"github.com/ajjensen13/ivsrefresh/internal/refresh"
	"github.com/ajjensen13/ivsrefresh/internal/store"
)

const (
	dbSecretName  = "ivsrefresh-db-secret.json"
	appConfigName = "ivsrefresh-config-cm.json"
	apiSecretName = "ivsrefresh-api-secret.json"
)

type appConfig struct {
	DateFrom           string        `mapstructure:"date_from"`
	DateTo             string        `mapstructure:"date_to"`
	Timezone           string        `mapstructure:"timezone"`
	Region             string        `mapstructure:"region"`
	OTMFrom            int           `mapstructure:"otm_from"`
	OTMTo              int           `mapstructure:"otm_to"`
	PeriodFrom         int           `mapstructure:"period_from"`
	PeriodTo           int           `mapstructure:"period_to"`
	TickerSQL          string        `mapstructure:"ticker_sql"`
	MaxWorkers         int           `mapstructure:"max_workers"`
	ChunkSize          int           `mapstructure:"chunk_size"`
	TargetTable        string        `mapstructure:"target_table"`
	DataSourceName     string        `mapstructure:"data_source_name"`
	MigrationSourceURL string        `mapstructure:"migration_source_url"`
	ProviderURL        string        `mapstructure:"provider_url"`
	RequestInterval    time.Duration `mapstructure:"request_interval"`
	RetryMaxElapsed    time.Duration `mapstructure:"retry_max_elapsed"`
	// RecordNoBlock ids are reserved per symbol on every run, used or not.
	RecordNoBlock int64 `mapstructure:"record_no_block"`
	// RecordNoMax caps record_no; 0 means the BIGINT maximum. Each run moves the
	// stored maximum up by about (symbols-1)*record_no_block, so an INT cap
	// (2147483647) with the default block and a few dozen symbols lasts only a
	// few dozen runs. Lower record_no_block when capping.
	RecordNoMax int64 `mapstructure:"record_no_max"`
}

type appSecrets struct {
	ApiKey string `json:"api_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("date_from", "")
	v.SetDefault("date_to", "")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("region", "USA")
	v.SetDefault("otm_from", 0)
	v.SetDefault("otm_to", 0)
	v.SetDefault("period_from", 90)
	v.SetDefault("period_to", 90)
	v.SetDefault("ticker_sql", "")
	v.SetDefault("max_workers", refresh.DefaultConcurrency)
	v.SetDefault("chunk_size", load.DefaultChunkSize)
	v.SetDefault("target_table", "etl.ivolatility_ivs")
	v.SetDefault("data_source_name", "")
	v.SetDefault("migration_source_url", "file://migrations")
	v.SetDefault("provider_url", api.DefaultBaseURL)
	v.SetDefault("request_interval", time.Duration(0))
	v.SetDefault("retry_max_elapsed", time.Minute)
	v.SetDefault("record_no_block", int64(recordno.DefaultBlockSize))
	v.SetDefault("record_no_max", int64(0))
}

func loadAppConfig(v *viper.Viper) (*appConfig, error) {
	var result appConfig
	err := v.Unmarshal(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	err = result.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &result, nil
}

func (c *appConfig) Validate() error {
	if c.TickerSQL == "" {
		return errors.New("ticker_sql is required")
	}
	if c.Region == "" {
		return errors.New("region is required")
	}
	if _, err := store.ParseTable(c.TargetTable); err != nil {
		return fmt.Errorf("target_table: %w", err)
	}
	if c.MaxWorkers < 1 {
		return errors.New("max_workers must be >= 1")
	}
	if c.ChunkSize < 1 {
		return errors.New("chunk_size must be >= 1")
	}
	if c.OTMFrom > c.OTMTo {
		return fmt.Errorf("otm_from (%d) cannot exceed otm_to (%d)", c.OTMFrom, c.OTMTo)
	}
	if c.PeriodFrom > c.PeriodTo {
		return fmt.Errorf("period_from (%d) cannot exceed period_to (%d)", c.PeriodFrom, c.PeriodTo)
	}
	if c.RequestInterval < 0 {
		return errors.New("request_interval must be >= 0")
	}
	if c.RecordNoBlock < 1 {
		return errors.New("record_no_block must be >= 1")
	}
	if c.RecordNoMax < 0 {
		return errors.New("record_no_max must be >= 0")
	}
	return nil
}

func (c *appConfig) filterBounds() model.FilterBounds {
	return model.FilterBounds{OTMFrom: c.OTMFrom, OTMTo: c.OTMTo, PeriodFrom: c.PeriodFrom, PeriodTo: c.PeriodTo}
}

// dateWindow resolves the configured window. An unset from is yesterday and
// an unset to is today, both relative to now in tz.
func (c *appConfig) dateWindow(tz *time.Location, now time.Time) (model.DateWindow, error) {
	now = now.In(tz)

	from := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, tz)
	if c.DateFrom != "" {
		t, err := time.ParseInLocation(model.DateLayout, c.DateFrom, tz)
		if err != nil {
			return model.DateWindow{}, fmt.Errorf("failed to parse date_from: %w", err)
		}
		from = t
	}

	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz)
	if c.DateTo != "" {
		t, err := time.ParseInLocation(model.DateLayout, c.DateTo, tz)
		if err != nil {
			return model.DateWindow{}, fmt.Errorf("failed to parse date_to: %w", err)
		}
		to = t
	}

	ret := model.DateWindow{From: model.Day(from), To: model.Day(to)}
	return ret, ret.Validate()
}
