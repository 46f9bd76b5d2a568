package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestInitPostgresConnects(t *testing.T) {
	origNewPool := newPool
	origPing := pingPool
	t.Cleanup(func() {
		newPool = origNewPool
		pingPool = origPing
		Pool = nil
	})

	var capturedURL string
	newPool = func(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
		capturedURL = databaseURL
		return &pgxpool.Pool{}, nil
	}
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return nil
	}

	InitPostgres(context.Background(), "postgres://example/market_pulse")
	if capturedURL != "postgres://example/market_pulse" {
		t.Fatalf("unexpected url: %s", capturedURL)
	}
	if Pool == nil {
		t.Fatal("pool not assigned")
	}
}
