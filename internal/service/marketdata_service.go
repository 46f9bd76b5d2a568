package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/marketclock"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IndicatorFetcher is the orchestrator surface the service consumes.
type IndicatorFetcher interface {
	GetIndicator(ctx context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error)
}

// FearGreedComputer produces the composite index; it degrades internally
// and never fails.
type FearGreedComputer interface {
	Compute(ctx context.Context) *domain.FearGreedIndex
}

type CacheStore interface {
	Get(ctx context.Context, dataType domain.IndicatorType, session domain.MarketSession, now time.Time) (*domain.CacheEntry, error)
	Upsert(ctx context.Context, entry *domain.CacheEntry) error
	Stats(ctx context.Context, now time.Time) (total int, expired int, dataTypes []domain.IndicatorType, err error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// MarketDataService is the read-through layer over the two cache tiers:
// redis in front, postgres behind, the orchestrator (or the fear/greed
// calculator) on a miss.
type MarketDataService struct {
	tracer    trace.Tracer
	fetcher   IndicatorFetcher
	fearGreed FearGreedComputer
	repo      CacheStore
	redis     RedisClient
	clock     marketclock.Clock

	hits   atomic.Int64
	misses atomic.Int64
}

func NewMarketDataService(
	tracer trace.Tracer,
	fetcher IndicatorFetcher,
	fearGreed FearGreedComputer,
	repo CacheStore,
	redisClient RedisClient,
	clock marketclock.Clock,
) *MarketDataService {
	if clock == nil {
		clock = marketclock.SystemClock{}
	}
	return &MarketDataService{
		tracer:    tracer,
		fetcher:   fetcher,
		fearGreed: fearGreed,
		repo:      repo,
		redis:     redisClient,
		clock:     clock,
	}
}

// GetIndicator serves an indicator read-through: redis, then postgres,
// then a live orchestrator fetch that repopulates both tiers. A broken
// cache tier degrades to the next one rather than failing the read.
func (s *MarketDataService) GetIndicator(ctx context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-indicator")
	defer span.End()
	span.SetAttributes(attribute.String("indicator", string(indicator)))

	if !indicator.IsValid() {
		return nil, fmt.Errorf("unsupported indicator: %s", indicator)
	}
	if indicator == domain.IndicatorFearGreed {
		// The composite index has no fallback chain; it is computed, not
		// fetched, and its value rides along in indicator shape.
		index, err := s.GetFearGreed(ctx)
		if err != nil {
			return nil, err
		}
		return &domain.MarketIndicator{
			Type:   domain.IndicatorFearGreed,
			Value:  float64(index.Value),
			AsOf:   index.ComputedAt,
			Source: index.Source,
		}, nil
	}

	var result domain.MarketIndicator
	if s.readCached(ctx, indicator, &result) {
		result.Source = domain.SourceCache
		return &result, nil
	}

	fresh, err := s.fetcher.GetIndicator(ctx, indicator)
	if err != nil {
		return nil, err
	}
	s.store(ctx, indicator, fresh, fresh.Source)
	return fresh, nil
}

// GetFearGreed serves the composite index the same way; on a miss the
// calculator recomputes it from live inputs.
func (s *MarketDataService) GetFearGreed(ctx context.Context) (*domain.FearGreedIndex, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-fear-greed")
	defer span.End()

	var index domain.FearGreedIndex
	if s.readCached(ctx, domain.IndicatorFearGreed, &index) {
		index.Source = domain.SourceCache
		return &index, nil
	}

	index = *s.fearGreed.Compute(ctx)
	s.store(ctx, domain.IndicatorFearGreed, index, index.Source)
	return &index, nil
}

// RefreshIndicator bypasses the cache read and repopulates both tiers;
// the scheduler and the force-refresh endpoint share this path.
func (s *MarketDataService) RefreshIndicator(ctx context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.refresh-indicator")
	defer span.End()
	span.SetAttributes(attribute.String("indicator", string(indicator)))

	if indicator == domain.IndicatorFearGreed {
		index := s.fearGreed.Compute(ctx)
		s.store(ctx, domain.IndicatorFearGreed, index, index.Source)
		return &domain.MarketIndicator{
			Type:   domain.IndicatorFearGreed,
			Value:  float64(index.Value),
			AsOf:   index.ComputedAt,
			Source: index.Source,
		}, nil
	}

	fresh, err := s.fetcher.GetIndicator(ctx, indicator)
	if err != nil {
		return nil, err
	}
	s.store(ctx, indicator, fresh, fresh.Source)
	return fresh, nil
}

// Stats snapshots both the repository contents and the in-process
// hit/miss counters.
func (s *MarketDataService) Stats(ctx context.Context) (*domain.CacheStats, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.stats")
	defer span.End()

	total, expired, dataTypes, err := s.repo.Stats(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}

	hits := s.hits.Load()
	misses := s.misses.Load()
	stats := &domain.CacheStats{
		TotalEntries:   total,
		ExpiredEntries: expired,
		Hits:           hits,
		Misses:         misses,
		DataTypes:      dataTypes,
	}
	if hits+misses > 0 {
		stats.HitRate = float64(hits) / float64(hits+misses)
	}
	return stats, nil
}

// readCached tries redis then postgres, unmarshalling the stored payload
// into out. A postgres hit backfills redis for the entry's remaining
// freshness. Returns false on a miss from both tiers.
func (s *MarketDataService) readCached(ctx context.Context, dataType domain.IndicatorType, out any) bool {
	now := s.clock.Now()
	session := marketclock.CurrentSession(now)
	key := redisKey(dataType, session)

	if s.redis != nil {
		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			log.Printf("service: redis read for %s failed: %v", key, err)
		}
		if err == nil {
			if jsonErr := json.Unmarshal(data, out); jsonErr == nil {
				s.hits.Add(1)
				return true
			}
			log.Printf("service: discarding corrupt redis payload for %s", key)
		}
	}

	entry, err := s.repo.Get(ctx, dataType, session, now)
	if err != nil {
		log.Printf("service: cache repository read for %s failed, fetching live: %v", dataType, err)
	}
	if entry != nil {
		if jsonErr := json.Unmarshal(entry.Payload, out); jsonErr == nil {
			if s.redis != nil {
				if ttl := entry.ExpiresAt.Sub(now); ttl > 0 {
					_ = s.redis.Set(ctx, key, []byte(entry.Payload), ttl).Err()
				}
			}
			s.hits.Add(1)
			return true
		}
		log.Printf("service: discarding corrupt cached payload for %s/%s", dataType, session)
	}

	s.misses.Add(1)
	return false
}

// store writes a fresh result to both tiers, best effort: a failed write
// never fails the read that produced the data.
func (s *MarketDataService) store(ctx context.Context, dataType domain.IndicatorType, payload any, source string) {
	now := s.clock.Now()
	session := marketclock.CurrentSession(now)
	ttl := marketclock.TTLFor(dataType, now)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("service: marshal %s payload: %v", dataType, err)
		return
	}

	entry := &domain.CacheEntry{
		DataType:     dataType,
		Session:      session,
		Payload:      data,
		CachedAt:     now,
		ExpiresAt:    now.Add(ttl),
		Source:       source,
		QualityScore: qualityScore(source),
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		log.Printf("service: cache write for %s/%s failed: %v", dataType, session, err)
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, redisKey(dataType, session), data, ttl).Err(); err != nil {
			log.Printf("service: redis write for %s/%s failed: %v", dataType, session, err)
		}
	}
}

func redisKey(dataType domain.IndicatorType, session domain.MarketSession) string {
	return fmt.Sprintf("indicator:%s:%s", dataType, session)
}

// qualityScore grades an entry by where its data came from; mock data is
// stored but marked clearly second-rate.
func qualityScore(source string) int {
	switch source {
	case domain.SourceAlphaVantage, domain.SourceFRED:
		return 100
	case domain.SourceYahooBackup:
		return 90
	case domain.SourceMock:
		return 30
	default:
		return 70
	}
}
