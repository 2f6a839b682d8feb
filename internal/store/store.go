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

// Package store is the Postgres implied volatility surface table.
package store

import (
	"cloud.google.com/go/logging"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/util"
)

var (
	ErrInvalidTable   = errors.New("invalid table name")
	ErrNoSymbolColumn = errors.New("symbol query must return a symbol column")
	ErrShortCopy      = errors.New("copied fewer rows than requested")
)

// ParseTable splits a "schema.table" or "table" name into an identifier.
func ParseTable(name string) (pgx.Identifier, error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTable, name)
		}
	}
	return pgx.Identifier(parts), nil
}

// Open connects a pool of at most maxConns connections and verifies it with a ping.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data source name: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection pool: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to aquire database connection: %w", err)
	}
	defer conn.Release()

	err = conn.Conn().Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

type Store struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
}

func New(pool *pgxpool.Pool, table pgx.Identifier) *Store {
	return &Store{pool: pool, table: table}
}

func (s *Store) Table() string {
	return s.table.Sanitize()
}

func deleteWindowSQL(table pgx.Identifier) string {
	return `DELETE FROM ` + table.Sanitize() + ` WHERE "symbol" = $1 AND "date" BETWEEN $2 AND $3`
}

func maxRecordNoSQL(table pgx.Identifier) string {
	return `SELECT COALESCE(MAX("record_no"), 0) FROM ` + table.Sanitize()
}

// DeleteWindow removes the rows of symbol dated inside window.
func (s *Store) DeleteWindow(ctx context.Context, symbol string, window model.DateWindow) (int64, error) {
	ctx = util.WithLoggerValue(ctx, "action", "delete")
	ctx, cancel := util.Deadline(ctx, util.MedReqTimeout)
	defer cancel()

	var deleted int64
	err := util.RunTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		r, err := tx.Exec(ctx, deleteWindowSQL(s.table), symbol, model.Day(window.From), model.Day(window.To))
		if err != nil {
			return fmt.Errorf("failed to delete %q rows (%v) from %s: %w", symbol, window, s.Table(), err)
		}
		deleted = r.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	util.Logf(ctx, logging.Debug, "deleted %d %q rows (%v) from %s", deleted, symbol, window, s.Table())
	return deleted, nil
}

// WriteChunk copies rows into the table in a single transaction.
func (s *Store) WriteChunk(ctx context.Context, rows []model.TargetRow) error {
	ctx, cancel := util.Deadline(ctx, util.MedReqTimeout)
	defer cancel()

	return util.RunTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx, s.table, model.TargetColumns, pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			return rows[i].Values(), nil
		}))
		if err != nil {
			return fmt.Errorf("failed to copy %d rows into %s: %w", len(rows), s.Table(), err)
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("%w: %d of %d into %s", ErrShortCopy, n, len(rows), s.Table())
		}
		return nil
	})
}

// MaxRecordNo returns the largest stored record_no, or 0 for an empty table.
func (s *Store) MaxRecordNo(ctx context.Context) (int64, error) {
	ctx, cancel := util.Deadline(ctx, util.ShortReqTimeout)
	defer cancel()

	var ret int64
	err := s.pool.QueryRow(ctx, maxRecordNoSQL(s.table)).Scan(&ret)
	if err != nil {
		return 0, fmt.Errorf("failed to query latest record_no of %s: %w", s.Table(), err)
	}
	return ret, nil
}

// Symbols runs query and returns one work item per distinct symbol. The query
// must return a symbol column; a missing or blank region column falls back to
// defaultRegion.
func (s *Store) Symbols(ctx context.Context, query string, defaultRegion string) ([]model.WorkItem, error) {
	ctx, cancel := util.Deadline(ctx, util.MedReqTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to run symbol query: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = string(fd.Name)
	}

	var values [][]interface{}
	for rows.Next() {
		v, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read symbol query row: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol query: %w", err)
	}

	items, skipped, err := workItems(names, values, defaultRegion)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		util.Logf(ctx, logging.Warning, "skipped %d symbol query rows without a symbol or already listed", skipped)
	}
	return items, nil
}

func workItems(names []string, values [][]interface{}, defaultRegion string) (items []model.WorkItem, skipped int, err error) {
	symbolCol, regionCol := -1, -1
	for i, n := range names {
		switch strings.ToLower(n) {
		case "symbol":
			symbolCol = i
		case "region":
			regionCol = i
		}
	}
	if symbolCol < 0 {
		return nil, 0, fmt.Errorf("%w: got %v", ErrNoSymbolColumn, names)
	}

	seen := make(map[string]struct{}, len(values))
	items = make([]model.WorkItem, 0, len(values))
	for _, v := range values {
		symbol := str(v[symbolCol])
		if _, dup := seen[symbol]; symbol == "" || dup {
			skipped++
			continue
		}
		seen[symbol] = struct{}{}

		region := defaultRegion
		if regionCol >= 0 {
			if r := str(v[regionCol]); r != "" {
				region = r
			}
		}
		items = append(items, model.WorkItem{Symbol: symbol, Region: region})
	}
	return items, skipped, nil
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
