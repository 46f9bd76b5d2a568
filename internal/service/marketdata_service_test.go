package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"market-pulse/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

// Monday mid-session in New York (17:00 UTC = 12:00 ET).
var testInstant = time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type mockFetcher struct {
	result *domain.MarketIndicator
	err    error
	calls  int
}

func (m *mockFetcher) GetIndicator(_ context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.MarketIndicator{Type: indicator, Value: 1, Source: domain.SourceAlphaVantage}, nil
}

type mockComputer struct {
	index *domain.FearGreedIndex
	calls int
}

func (m *mockComputer) Compute(_ context.Context) *domain.FearGreedIndex {
	m.calls++
	if m.index != nil {
		return m.index
	}
	return &domain.FearGreedIndex{Value: 50, Status: domain.StatusNeutral, Confidence: 60, Source: "calculated"}
}

type mockCacheStore struct {
	entry   *domain.CacheEntry
	getErr  error
	upserts []*domain.CacheEntry
}

func (m *mockCacheStore) Get(_ context.Context, _ domain.IndicatorType, _ domain.MarketSession, _ time.Time) (*domain.CacheEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entry, nil
}

func (m *mockCacheStore) Upsert(_ context.Context, entry *domain.CacheEntry) error {
	m.upserts = append(m.upserts, entry)
	return nil
}

func (m *mockCacheStore) Stats(_ context.Context, _ time.Time) (int, int, []domain.IndicatorType, error) {
	return len(m.upserts), 0, nil, nil
}

type fakeRedis struct {
	data   map[string][]byte
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func newService(fetcher *mockFetcher, computer *mockComputer, repo *mockCacheStore, r RedisClient) *MarketDataService {
	return NewMarketDataService(testTracer, fetcher, computer, repo, r, fixedClock{testInstant})
}

func TestGetIndicatorRedisHit(t *testing.T) {
	t.Parallel()

	r := newFakeRedis()
	cached := &domain.MarketIndicator{Type: domain.IndicatorVIX, Value: 18.5, Source: domain.SourceAlphaVantage}
	data, _ := json.Marshal(cached)
	_ = r.Set(context.Background(), "indicator:vix:intraday", data, 0)

	fetcher := &mockFetcher{}
	svc := newService(fetcher, &mockComputer{}, &mockCacheStore{}, r)

	got, err := svc.GetIndicator(context.Background(), domain.IndicatorVIX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != 18.5 {
		t.Errorf("Value = %v, want 18.5", got.Value)
	}
	if got.Source != domain.SourceCache {
		t.Errorf("Source = %q, want %q", got.Source, domain.SourceCache)
	}
	if fetcher.calls != 0 {
		t.Errorf("orchestrator called %d times on a cache hit", fetcher.calls)
	}
}

func TestGetIndicatorRepositoryHitBackfillsRedis(t *testing.T) {
	t.Parallel()

	stored := &domain.MarketIndicator{Type: domain.IndicatorSP500, Value: 4800, Source: domain.SourceAlphaVantage}
	payload, _ := json.Marshal(stored)
	repo := &mockCacheStore{entry: &domain.CacheEntry{
		DataType:  domain.IndicatorSP500,
		Session:   domain.SessionIntraday,
		Payload:   payload,
		ExpiresAt: testInstant.Add(3 * time.Minute),
	}}
	r := newFakeRedis()
	fetcher := &mockFetcher{}
	svc := newService(fetcher, &mockComputer{}, repo, r)

	got, err := svc.GetIndicator(context.Background(), domain.IndicatorSP500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != 4800 {
		t.Errorf("Value = %v, want 4800", got.Value)
	}
	if fetcher.calls != 0 {
		t.Error("orchestrator called despite repository hit")
	}
	if _, ok := r.data["indicator:sp500:intraday"]; !ok {
		t.Error("repository hit did not backfill redis")
	}
}

func TestGetIndicatorMissFetchesAndStores(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{result: &domain.MarketIndicator{
		Type: domain.IndicatorSP500, Value: 4810, Source: domain.SourceYahooBackup,
	}}
	repo := &mockCacheStore{}
	r := newFakeRedis()
	svc := newService(fetcher, &mockComputer{}, repo, r)

	got, err := svc.GetIndicator(context.Background(), domain.IndicatorSP500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != domain.SourceYahooBackup {
		t.Errorf("Source = %q, want fresh source preserved", got.Source)
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(repo.upserts))
	}
	entry := repo.upserts[0]
	if entry.Session != domain.SessionIntraday {
		t.Errorf("Session = %s, want intraday", entry.Session)
	}
	// sp500 freshness during market hours is 5 minutes.
	if want := testInstant.Add(5 * time.Minute); !entry.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, want)
	}
	if entry.QualityScore != 90 {
		t.Errorf("QualityScore = %d, want 90 for yahoo", entry.QualityScore)
	}
	if _, ok := r.data["indicator:sp500:intraday"]; !ok {
		t.Error("fresh result not written to redis")
	}
}

func TestGetIndicatorRepositoryErrorFallsBackToLiveFetch(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{result: &domain.MarketIndicator{
		Type: domain.IndicatorVIX, Value: 22, Source: domain.SourceMock,
	}}
	repo := &mockCacheStore{getErr: errors.New("connection refused")}
	svc := newService(fetcher, &mockComputer{}, repo, nil)

	got, err := svc.GetIndicator(context.Background(), domain.IndicatorVIX)
	if err != nil {
		t.Fatalf("repository failure must not fail the read: %v", err)
	}
	if got.Value != 22 {
		t.Errorf("Value = %v, want live 22", got.Value)
	}
}

func TestGetIndicatorRejectsUnknownType(t *testing.T) {
	t.Parallel()

	svc := newService(&mockFetcher{}, &mockComputer{}, &mockCacheStore{}, nil)
	if _, err := svc.GetIndicator(context.Background(), "dogecoin"); err == nil {
		t.Fatal("expected error for unknown indicator")
	}
}

func TestGetIndicatorRoutesFearGreedToCalculator(t *testing.T) {
	t.Parallel()

	computer := &mockComputer{index: &domain.FearGreedIndex{
		Value: 35, Status: domain.StatusFear, Confidence: 83,
		ComputedAt: testInstant, Source: "calculated",
	}}
	fetcher := &mockFetcher{}
	svc := newService(fetcher, computer, &mockCacheStore{}, newFakeRedis())

	got, err := svc.GetIndicator(context.Background(), domain.IndicatorFearGreed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != domain.IndicatorFearGreed || got.Value != 35 {
		t.Fatalf("unexpected indicator: %+v", got)
	}
	if fetcher.calls != 0 {
		t.Error("orchestrator called for the composite index")
	}
	if computer.calls != 1 {
		t.Errorf("Compute called %d times, want 1", computer.calls)
	}
}

func TestGetFearGreedComputesOnMiss(t *testing.T) {
	t.Parallel()

	computer := &mockComputer{index: &domain.FearGreedIndex{
		Value: 72, Status: domain.StatusGreed, Confidence: 89, Source: "calculated",
	}}
	repo := &mockCacheStore{}
	svc := newService(&mockFetcher{}, computer, repo, newFakeRedis())

	got, err := svc.GetFearGreed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != 72 || got.Status != domain.StatusGreed {
		t.Fatalf("unexpected index: %+v", got)
	}
	if computer.calls != 1 {
		t.Errorf("Compute called %d times, want 1", computer.calls)
	}
	if len(repo.upserts) != 1 || repo.upserts[0].DataType != domain.IndicatorFearGreed {
		t.Fatalf("index not cached: %+v", repo.upserts)
	}
}

func TestRefreshIndicatorBypassesCacheRead(t *testing.T) {
	t.Parallel()

	r := newFakeRedis()
	stale := &domain.MarketIndicator{Type: domain.IndicatorSP500, Value: 1}
	data, _ := json.Marshal(stale)
	_ = r.Set(context.Background(), "indicator:sp500:intraday", data, 0)

	fetcher := &mockFetcher{result: &domain.MarketIndicator{
		Type: domain.IndicatorSP500, Value: 4900, Source: domain.SourceAlphaVantage,
	}}
	repo := &mockCacheStore{}
	svc := newService(fetcher, &mockComputer{}, repo, r)

	got, err := svc.RefreshIndicator(context.Background(), domain.IndicatorSP500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Value != 4900 {
		t.Errorf("Value = %v, want fresh 4900", got.Value)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetcher.calls)
	}
	if len(repo.upserts) != 1 {
		t.Errorf("upserts = %d, want 1", len(repo.upserts))
	}
}

func TestStatsReportsHitRate(t *testing.T) {
	t.Parallel()

	r := newFakeRedis()
	cached := &domain.MarketIndicator{Type: domain.IndicatorVIX, Value: 18}
	data, _ := json.Marshal(cached)
	_ = r.Set(context.Background(), "indicator:vix:intraday", data, 0)

	svc := newService(&mockFetcher{}, &mockComputer{}, &mockCacheStore{}, r)

	// one hit, one miss
	if _, err := svc.GetIndicator(context.Background(), domain.IndicatorVIX); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetIndicator(context.Background(), domain.IndicatorSP500); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
}
