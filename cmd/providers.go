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
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ajjensen13/config"
	"github.com/ajjensen13/gke"
	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/viper"

	"github.com/ajjensen13/ivsrefresh/internal/api"
	"github.com/ajjensen13/ivsrefresh/internal/load"
	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/recordno"
	"github.com/ajjensen13/ivsrefresh/internal/refresh"
	"github.com/ajjensen13/ivsrefresh/internal/store"
	"github.com/ajjensen13/ivsrefresh/internal/transform"
	"github.com/ajjensen13/ivsrefresh/internal/util"
)

func provideViper() *viper.Viper {
	return viper.GetViper()
}

func provideAppConfig(v *viper.Viper) (*appConfig, error) {
	return loadAppConfig(v)
}

func provideTimezone(appConfig *appConfig) (*time.Location, error) {
	if appConfig.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(appConfig.Timezone)
}

func provideDateWindow(cfg *appConfig, tz *time.Location) (model.DateWindow, error) {
	return cfg.dateWindow(tz, time.Now())
}

// provideAppSecrets prefers the api key from the environment and falls back
// to the mounted secret.
func provideAppSecrets(v *viper.Viper) (*appSecrets, error) {
	if key := v.GetString("api_key"); key != "" {
		return &appSecrets{ApiKey: key}, nil
	}

	var result appSecrets
	err := config.InterfaceJson(apiSecretName, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider api key: %w", err)
	}
	if result.ApiKey == "" {
		return nil, errors.New("provider api key is empty")
	}
	return &result, nil
}

// provideDbSecrets returns nil when the data source name already carries
// credentials.
func provideDbSecrets(cfg *appConfig) (*url.Userinfo, error) {
	dsn, err := url.Parse(cfg.DataSourceName)
	if err == nil && dsn.User != nil {
		return nil, nil
	}

	ui, err := config.Userinfo(dbSecretName)
	if err != nil {
		return nil, fmt.Errorf("failed to read database credentials: %w", err)
	}
	return ui, nil
}

func provideDataSourceName(user *url.Userinfo, cfg *appConfig) (dsn *url.URL, err error) {
	if cfg.DataSourceName == "" {
		return nil, errors.New("data_source_name is required")
	}

	dsn, err = url.Parse(cfg.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data source name: %w", err)
	}
	if user != nil {
		dsn.User = user
	}

	return dsn, nil
}

// provideDbConnPool sizes the pool to one connection per worker plus one for
// the setup queries.
func provideDbConnPool(ctx context.Context, dsn *url.URL, cfg *appConfig) (ret *pgxpool.Pool, cleanup func(), err error) {
	pool, err := store.Open(ctx, dsn.String(), int32(cfg.MaxWorkers+1))
	if err != nil {
		return nil, func() {}, err
	}

	return pool, pool.Close, nil
}

func provideTable(cfg *appConfig) (pgx.Identifier, error) {
	return store.ParseTable(cfg.TargetTable)
}

func provideBackoffFactory(cfg *appConfig) func() backoff.BackOff {
	return func() backoff.BackOff {
		result := backoff.NewExponentialBackOff()
		result.InitialInterval = time.Second
		result.MaxElapsedTime = cfg.RetryMaxElapsed
		return result
	}
}

func provideBackoffNotifier(lg gke.Logger) backoff.Notify {
	return func(err error, duration time.Duration) {
		if errors.Is(err, api.ErrTooManyRequests) {
			lg.Info(gke.NewFmtMsgData("request exceeded rate limit, waiting %v before retrying: %v", duration, err))
			return
		}
		lg.Warning(gke.NewFmtMsgData("request failed, waiting %v before retrying: %v", duration, err))
	}
}

func provideApiClient(cfg *appConfig, secrets *appSecrets, bo func() backoff.BackOff, bon backoff.Notify) (*api.Client, func()) {
	client := api.NewClient(cfg.ProviderURL, secrets.ApiKey,
		api.WithThrottle(cfg.RequestInterval),
		api.WithBackOff(bo),
		api.WithNotify(bon),
		api.WithTimeout(util.ShortReqTimeout),
	)
	return client, client.Close
}

func provideLoader(st *store.Store, cfg *appConfig) *load.Loader {
	return &load.Loader{Writer: st, ChunkSize: cfg.ChunkSize}
}

func provideReconciler(ns *recordno.Namespace) transform.Reconciler {
	return transform.Reconciler{IDs: ns}
}

func provideTask(st *store.Store, client *api.Client, rec transform.Reconciler, loader *load.Loader, cfg *appConfig) *refresh.Task {
	return &refresh.Task{
		Store:      st,
		Provider:   client,
		Reconciler: rec,
		Loader:     loader,
		Filter:     cfg.filterBounds(),
	}
}

func provideOrchestrator(r refresh.Refresher, cfg *appConfig) *refresh.Orchestrator {
	return &refresh.Orchestrator{
		Refresher:   r,
		Concurrency: cfg.MaxWorkers,
		Progress:    &refresh.Tally{},
	}
}

func provideMigrationSourceURL(cfg *appConfig) string {
	return cfg.MigrationSourceURL
}

func provideLogger() (lg gke.Logger, cleanup func()) {
	lg, cleanup, err := gke.NewLogger(context.Background())
	if err != nil {
		panic(err)
	}

	gke.LogEnv(lg)
	gke.LogMetadata(lg)

	return lg, cleanup
}

func provideMigrator(lg gke.Logger, databaseURL *url.URL, sourceURL string) (m *migrate.Migrate, err error) {
	m, err = migrate.New(sourceURL, databaseURL.String())
	if err != nil {
		return nil, err
	}
	m.Log = migrationLogger{lg}
	return m, err
}

type migrationLogger struct {
	gke.Logger
}

func (m migrationLogger) Printf(format string, v ...interface{}) {
	m.Defaultf(format, v...)
}

func (m migrationLogger) Verbose() bool {
	return false
}
