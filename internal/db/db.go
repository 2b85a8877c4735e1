// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// package db stores site descriptors and the reconciliation journal. It
// abstracts the underlying database (SQLite, PostgreSQL or MySQL) behind bun
// so the rest of the daemon talks to one Store regardless of backend.
package db // import "github.com/ao-apps/aoserv-daemon-sub001/internal/db"

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	// SQL drivers for the non-default backends.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// sqlOpenFunc allows tests to override database opening behavior.
var sqlOpenFunc = sql.Open

// driverFor maps a configured database type to its database/sql driver.
func driverFor(dbType string) (string, error) {
	switch dbType {
	case "sqlite":
		return "sqlite", nil
	case "postgres":
		// The pgx stdlib registers driver name "pgx".
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported database type: '%s'", dbType)
	}
}

// NewStoreFromDSN opens a sql.DB for the given DSN, creates missing tables
// and returns a Store backed by a long-lived *bun.DB.
func NewStoreFromDSN(dbType, dsn string) (*BunStore, error) {
	driverName, err := driverFor(dbType)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pool defaults are conservative; the daemon runs one pass at a time per
	// root and only a handful of roots in parallel.
	const (
		defaultMaxOpenConns    = 8
		defaultMaxIdleConns    = 8
		defaultConnMaxLifetime = 5 * time.Minute
	)
	maxOpen := envInt("AOSERV_TOMCAT_DB_MAX_OPEN_CONNS", defaultMaxOpenConns)
	maxIdle := envInt("AOSERV_TOMCAT_DB_MAX_IDLE_CONNS", defaultMaxIdleConns)
	// Every connection to ":memory:" is a separate database.
	if dbType == "sqlite" && dsn == ":memory:" {
		maxOpen = 1
		maxIdle = 1
	}
	connMax := time.Duration(envInt("AOSERV_TOMCAT_DB_CONN_MAX_LIFETIME_SECONDS", int(defaultConnMaxLifetime/time.Second))) * time.Second

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMax)
	dbLogf("db: opened %s driver in %s (conn max open=%d, idle=%d, maxLifetime=%s)", driverName, time.Since(start), maxOpen, maxIdle, connMax)

	bunDB := createBunDB(sqlDB, dbType)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	migStart := time.Now()
	if err := createSchema(ctx, bunDB); err != nil {
		_ = bunDB.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	dbLogf("db: schema for %s ready in %s", dbType, time.Since(migStart))
	return &BunStore{bun: bunDB, dbType: dbType}, nil
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// createSchema creates the tables the store needs. Existing tables are left
// as they are.
func createSchema(ctx context.Context, bdb *bun.DB) error {
	for _, m := range []interface{}{(*SiteModel)(nil), (*PassModel)(nil)} {
		if _, err := bdb.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
