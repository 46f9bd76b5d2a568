// Package tracking persists per-call API usage records. Recording is
// fire-and-forget: adapters hand records to a buffered channel and a
// background goroutine writes them out; a full buffer or a failed insert
// is dropped, never surfaced to the data path.
package tracking

import (
	"context"
	"log"
	"time"

	"market-pulse/internal/provider"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createUsageTable = `
CREATE TABLE IF NOT EXISTS api_usage (
    id          BIGSERIAL   PRIMARY KEY,
    provider    TEXT        NOT NULL,
    endpoint    TEXT        NOT NULL,
    success     BOOLEAN     NOT NULL,
    latency_ms  BIGINT      NOT NULL,
    error_kind  TEXT        NOT NULL DEFAULT '',
    recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_api_usage_provider_time
    ON api_usage (provider, recorded_at DESC);
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Tracker struct {
	pool   execer
	tracer trace.Tracer
	queue  chan provider.UsageRecord
	now    func() time.Time
}

func NewTracker(pool execer, tracer trace.Tracer) *Tracker {
	return &Tracker{
		pool:   pool,
		tracer: tracer,
		queue:  make(chan provider.UsageRecord, 256),
		now:    time.Now,
	}
}

func (t *Tracker) RunMigrations(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "tracker.run-migrations")
	defer span.End()

	_, err := t.pool.Exec(ctx, createUsageTable)
	return err
}

// Record enqueues a usage record without blocking. When the buffer is
// full the record is dropped; losing a usage row is always preferable to
// adding latency to a provider call.
func (t *Tracker) Record(rec provider.UsageRecord) {
	select {
	case t.queue <- rec:
	default:
	}
}

// Run drains the queue until ctx is cancelled. Insert failures are logged
// and forgotten.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-t.queue:
			t.insert(ctx, rec)
		}
	}
}

func (t *Tracker) insert(ctx context.Context, rec provider.UsageRecord) {
	if t.pool == nil {
		return
	}
	ctx, span := t.tracer.Start(ctx, "tracker.insert")
	defer span.End()

	_, err := t.pool.Exec(ctx,
		`INSERT INTO api_usage (provider, endpoint, success, latency_ms, error_kind, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Provider, rec.Endpoint, rec.Success, rec.LatencyMs, rec.ErrorKind, t.now().UTC(),
	)
	if err != nil {
		log.Printf("tracking: insert usage record for %s/%s failed: %v", rec.Provider, rec.Endpoint, err)
	}
}
