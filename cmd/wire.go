//go:build wireinject
// +build wireinject

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
	"net/url"

	"github.com/ajjensen13/gke"
	"github.com/golang-migrate/migrate/v4"
	"github.com/google/wire"

	"github.com/ajjensen13/ivsrefresh/internal/api"
	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/recordno"
	"github.com/ajjensen13/ivsrefresh/internal/refresh"
	"github.com/ajjensen13/ivsrefresh/internal/store"
)

func logger() (lg gke.Logger, cleanup func()) {
	panic(wire.Build(provideLogger))
}

func appConfiguration() (cfg *appConfig, err error) {
	panic(wire.Build(provideAppConfig, provideViper))
}

func dateWindow(cfg *appConfig) (w model.DateWindow, err error) {
	panic(wire.Build(provideDateWindow, provideTimezone))
}

func dataSourceName(cfg *appConfig) (dsn *url.URL, err error) {
	panic(wire.Build(provideDataSourceName, provideDbSecrets))
}

func openStore(ctx context.Context, cfg *appConfig) (st *store.Store, cleanup func(), err error) {
	panic(wire.Build(store.New, provideTable, provideDbConnPool, provideDataSourceName, provideDbSecrets))
}

func apiClient(lg gke.Logger, cfg *appConfig) (client *api.Client, cleanup func(), err error) {
	panic(wire.Build(provideApiClient, provideAppSecrets, provideViper, provideBackoffFactory, provideBackoffNotifier))
}

func orchestrator(cfg *appConfig, st *store.Store, client *api.Client, ns *recordno.Namespace) *refresh.Orchestrator {
	panic(wire.Build(provideOrchestrator, provideTask, provideLoader, provideReconciler, wire.Bind(new(refresh.Refresher), new(*refresh.Task))))
}

func migrationSourceURL() (uri string, err error) {
	panic(wire.Build(provideMigrationSourceURL, provideAppConfig, provideViper))
}

func migrator(lg gke.Logger) (m *migrate.Migrate, err error) {
	panic(wire.Build(provideMigrator, migrationSourceURL, dataSourceName, provideAppConfig, provideViper))
}
