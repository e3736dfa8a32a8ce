package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/internal/runtimeconfig"
	"github.com/goliatone/go-mirror/pkg/interfaces"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var ErrUnsupportedDriver = errors.New("store: unsupported driver")

// Open connects to the configured database and returns a bun handle. When
// Debug is set every statement is logged at debug level.
func Open(cfg runtimeconfig.StorageConfig, logger interfaces.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite3", "sqlite":
		sqldb, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		// sqlite serialises writers; a single connection avoids busy errors.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case "postgres", "pg":
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}

	if cfg.Debug {
		db.AddQueryHook(&queryLogger{logger: logging.Ensure(logger)})
	}
	return db, nil
}

type queryLogger struct {
	logger interfaces.Logger
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	args := []any{
		"operation", event.Operation(),
		"duration", time.Since(event.StartTime),
		"query", event.Query,
	}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.logger.Warn("store.query.failed", append(args, "error", event.Err)...)
		return
	}
	h.logger.Debug("store.query", args...)
}
