package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the pgx pool shared by the detection, dispatch and ledger stores.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects and pings. Alert traffic is bursty and small, so the pool
// stays modest and idle connections are recycled.
func New(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// ApplyMigrations executes every *.sql file in dir in lexical order and
// returns the files applied. Migrations are written to be re-runnable.
func (db *DB) ApplyMigrations(ctx context.Context, dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	applied := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			return applied, fmt.Errorf("exec %s: %w", f, err)
		}
		applied = append(applied, f)
	}
	return applied, nil
}

// DropAll removes the tables created by the migrations.
func (db *DB) DropAll(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `DROP TABLE IF EXISTS alert_ledger, dispatch_reports, detections`)
	return err
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Stat exposes pool statistics for metrics.
func (db *DB) Stat() *pgxpool.Stat {
	return db.Pool.Stat()
}

func (db *DB) Close() {
	db.Pool.Close()
}
