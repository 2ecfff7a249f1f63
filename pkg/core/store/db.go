// Package store persists acquired reports and their reviews. Persistence
// is optional: without DATABASE_URL the repository stays disabled and the
// rest of the pipeline keeps working.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDisabled is returned by repositories when no database is configured.
var ErrDisabled = errors.New("report store disabled: no database configured")

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB initializes the database connection pool from the DATABASE_URL
// environment variable. A missing DATABASE_URL is not an error; the store
// simply stays disabled.
func InitDB(ctx context.Context) error {
	var err error
	once.Do(func() {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
	})
	return err
}

// GetPool returns the database connection pool, nil when disabled.
func GetPool() *pgxpool.Pool {
	return pool
}

// Enabled reports whether a database is configured.
func Enabled() bool {
	return pool != nil
}

// Close closes the database connection pool.
func Close() {
	if pool != nil {
		pool.Close()
	}
}
