// Package database opens the writer and reader bun pools shared by the
// repositories, migrations and seeders.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/workorders/internal/config"
)

const (
	pingTimeout        = 5 * time.Second
	slowQueryThreshold = 250 * time.Millisecond
)

// Connections bundles writer and reader bun instances. Reader is the same
// pool as Writer when no replica DSN is configured.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
	Driver string
}

// Ping verifies both pools can still reach the database.
func (c *Connections) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.Writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := c.Reader.PingContext(ctx); err != nil {
			return fmt.Errorf("ping reader: %w", err)
		}
	}
	return nil
}

// Close releases both pools.
func (c *Connections) Close() error {
	err := c.Writer.Close()
	if c.Reader != c.Writer {
		err = errors.Join(err, c.Reader.Close())
	}
	return err
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New opens the pools described by cfg.Database. They are pinged when the
// application starts and closed when it stops.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	dbCfg := cfg.Database
	dialect, err := selectDialect(dbCfg.Driver)
	if err != nil {
		return nil, err
	}
	hook := &queryLogger{logger: logger.Named("db"), slow: slowQueryThreshold}

	writer, err := openPool(dbCfg, dbCfg.WriterDSN, dialect, hook)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	reader := writer
	if dbCfg.ReaderDSN != dbCfg.WriterDSN {
		if reader, err = openPool(dbCfg, dbCfg.ReaderDSN, dialect, hook); err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
	}

	conns := &Connections{Writer: writer, Reader: reader, Driver: dbCfg.Driver}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected",
				zap.String("driver", dbCfg.Driver),
				zap.Bool("replica", reader != writer),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			return conns.Close()
		},
	})
	return conns, nil
}

func selectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openPool(cfg config.Database, dsn string, dialect schema.Dialect, hook bun.QueryHook) (*bun.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	var (
		sqldb *sql.DB
		err   error
	)
	switch cfg.Driver {
	case "postgres":
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	case "mysql":
		sqldb, err = sql.Open("mysql", dsn)
	case "sqlite":
		sqldb, err = sql.Open("sqlite3", dsn)
	default:
		err = fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" && strings.Contains(dsn, ":memory:") {
		// Every connection to ":memory:" is a separate database.
		sqldb.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.MaxConnLifetime > 0 {
			sqldb.SetConnMaxLifetime(cfg.MaxConnLifetime)
		}
	}

	db := bun.NewDB(sqldb, dialect)
	db.AddQueryHook(hook)
	return db, nil
}

// queryLogger logs failed and slow statements. sql.ErrNoRows is not a
// failure.
type queryLogger struct {
	logger *zap.Logger
	slow   time.Duration
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Warn("query failed",
			zap.String("operation", event.Operation()),
			zap.Duration("elapsed", elapsed),
			zap.Error(event.Err),
		)
	case elapsed >= h.slow:
		h.logger.Warn("slow query",
			zap.String("operation", event.Operation()),
			zap.Duration("elapsed", elapsed),
			zap.String("query", event.Query),
		)
	}
}
