// Package db owns the shared pgx connection pool.
package db

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

var (
	newPool = func(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
		return pgxpool.New(ctx, databaseURL)
	}
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

// InitPostgres connects the shared pool. The service cannot run without
// its cache tables, so a failed connection is fatal.
func InitPostgres(ctx context.Context, databaseURL string) {
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	pool, err := newPool(ctx, databaseURL)
	if err != nil {
		log.Fatalf("failed to create postgres pool: %v", err)
	}
	if err := pingPool(ctx, pool); err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}

	Pool = pool
	log.Println("Connected to Postgres")
}

func Close() {
	if Pool != nil {
		Pool.Close()
	}
}
