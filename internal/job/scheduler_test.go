package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

// fakeClock is advanced manually by tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advanceTo(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type stubRefresher struct {
	mu    sync.Mutex
	calls map[domain.IndicatorType]int
	fail  map[domain.IndicatorType]error
	panic bool
}

func newStubRefresher() *stubRefresher {
	return &stubRefresher{calls: make(map[domain.IndicatorType]int)}
}

func (s *stubRefresher) RefreshIndicator(_ context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error) {
	if s.panic {
		panic("refresher exploded")
	}
	s.mu.Lock()
	s.calls[indicator]++
	s.mu.Unlock()
	if err := s.fail[indicator]; err != nil {
		return nil, err
	}
	return &domain.MarketIndicator{Type: indicator, Source: domain.SourceAlphaVantage}, nil
}

func (s *stubRefresher) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type stubCleaner struct {
	mu      sync.Mutex
	calls   int
	deleted int64
	err     error
}

func (s *stubCleaner) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.deleted, s.err
}

func (s *stubCleaner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// blockingRefresher holds every refresh until release is closed.
type blockingRefresher struct {
	release chan struct{}
}

func (b *blockingRefresher) RefreshIndicator(_ context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error) {
	<-b.release
	return &domain.MarketIndicator{Type: indicator, Source: domain.SourceAlphaVantage}, nil
}

type stubAlerts struct {
	mu       sync.Mutex
	messages []string
}

func (s *stubAlerts) Notify(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *stubAlerts) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

// Exchange-local instants expressed in UTC (ET is UTC-5 in early March).
func etInstant(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour+5, min, 0, 0, time.UTC)
}

func TestMarketOpenTriggerFiresOnceAtOpen(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(etInstant(2026, 3, 2, 9, 0)) // Monday 09:00 ET
	refresher := newStubRefresher()
	s := NewScheduler(testTracer, refresher, &stubCleaner{}, nil, clock)
	s.lastRun[jobIntraday] = clock.Now() // pin the other periodic trigger

	s.evaluate(context.Background())
	s.jobs.Wait()
	if got := refresher.total(); got != 0 {
		t.Fatalf("refreshed %d indicators before the open", got)
	}

	clock.advanceTo(etInstant(2026, 3, 2, 9, 30))
	s.lastRun[jobIntraday] = clock.Now()
	s.evaluate(context.Background())
	s.jobs.Wait()
	if got := refresher.total(); got != len(domain.SupportedIndicators) {
		t.Fatalf("refreshed %d indicators at the open, want %d", got, len(domain.SupportedIndicators))
	}

	// Same instant again: already fired.
	s.evaluate(context.Background())
	s.jobs.Wait()
	if got := refresher.total(); got != len(domain.SupportedIndicators) {
		t.Fatalf("open trigger fired twice: %d refreshes", got)
	}
}

func TestMarketOpenTriggerSkipsWeekends(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(etInstant(2026, 3, 7, 8, 0)) // Saturday
	refresher := newStubRefresher()
	s := NewScheduler(testTracer, refresher, &stubCleaner{}, nil, clock)
	s.lastRun[jobIntraday] = clock.Now()

	clock.advanceTo(etInstant(2026, 3, 7, 9, 30))
	s.lastRun[jobIntraday] = clock.Now()
	s.evaluate(context.Background())
	s.jobs.Wait()

	if got := refresher.total(); got != 0 {
		t.Fatalf("open trigger fired on a Saturday: %d refreshes", got)
	}
}

func TestIntradayTriggerRespectsIntervalAndMarketHours(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(etInstant(2026, 3, 2, 12, 0)) // Monday midday
	refresher := newStubRefresher()
	s := NewScheduler(testTracer, refresher, &stubCleaner{}, nil, clock)

	s.evaluate(context.Background())
	s.jobs.Wait()
	if got := refresher.total(); got != len(domain.SupportedIndicators) {
		t.Fatalf("first in-hours evaluation refreshed %d, want %d", got, len(domain.SupportedIndicators))
	}

	clock.advanceTo(etInstant(2026, 3, 2, 12, 5))
	s.evaluate(context.Background())
	s.jobs.Wait()
	if got := refresher.total(); got != len(domain.SupportedIndicators) {
		t.Fatal("intraday trigger fired before its interval elapsed")
	}

	clock.advanceTo(etInstant(2026, 3, 2, 12, 15))
	s.evaluate(context.Background())
	s.jobs.Wait()
	if got := refresher.total(); got != 2*len(domain.SupportedIndicators) {
		t.Fatalf("intraday trigger did not fire after its interval: %d refreshes", got)
	}
}

func TestIntradayTriggerIsNoOpOutsideMarketHours(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(etInstant(2026, 3, 2, 20, 0)) // Monday evening
	refresher := newStubRefresher()
	s := NewScheduler(testTracer, refresher, &stubCleaner{}, nil, clock)

	s.evaluate(context.Background())
	s.jobs.Wait()
	if got := refresher.total(); got != 0 {
		t.Fatalf("intraday body ran outside market hours: %d refreshes", got)
	}
}

func TestCleanupTriggerFiresDaily(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(etInstant(2026, 3, 2, 12, 0))
	cleaner := &stubCleaner{deleted: 4}
	s := NewScheduler(testTracer, newStubRefresher(), cleaner, nil, clock)

	s.evaluate(context.Background())
	s.jobs.Wait()
	if cleaner.count() != 0 {
		t.Fatal("cleanup ran before its scheduled time")
	}

	clock.advanceTo(etInstant(2026, 3, 3, 2, 0)) // Tuesday 02:00 ET
	s.evaluate(context.Background())
	s.jobs.Wait()
	if cleaner.count() != 1 {
		t.Fatalf("cleanup calls = %d, want 1", cleaner.count())
	}

	s.evaluate(context.Background())
	s.jobs.Wait()
	if cleaner.count() != 1 {
		t.Fatal("cleanup fired twice for the same day")
	}
}

func TestDueTriggerFiresWhileAnotherJobIsRunning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	refresher := &blockingRefresher{release: release}
	cleaner := &stubCleaner{}
	clock := newFakeClock(etInstant(2026, 3, 2, 12, 0)) // Monday midday
	s := NewScheduler(testTracer, refresher, cleaner, nil, clock)

	s.evaluate(context.Background()) // intraday fires and blocks on the refresher

	clock.advanceTo(etInstant(2026, 3, 3, 2, 0)) // Tuesday 02:00 ET, cleanup due
	s.evaluate(context.Background())

	// Cleanup must complete even though the refresh job is still in flight.
	deadline := time.Now().Add(2 * time.Second)
	for cleaner.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup trigger waited for the running refresh job")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	s.jobs.Wait()
}

func TestForceRefreshIsolatesIndicatorFailures(t *testing.T) {
	t.Parallel()

	refresher := newStubRefresher()
	refresher.fail = map[domain.IndicatorType]error{
		domain.IndicatorVIX: errors.New("all providers exhausted"),
	}
	alerts := &stubAlerts{}
	clock := newFakeClock(etInstant(2026, 3, 2, 12, 0))
	s := NewScheduler(testTracer, refresher, &stubCleaner{}, alerts, clock)

	summary := s.ForceRefresh(context.Background(), domain.SessionIntraday)

	if summary.Total != len(domain.SupportedIndicators) {
		t.Fatalf("Total = %d, want %d", summary.Total, len(domain.SupportedIndicators))
	}
	if summary.Failed != 1 || summary.Succeeded != summary.Total-1 {
		t.Fatalf("succeeded/failed = %d/%d, want %d/1", summary.Succeeded, summary.Failed, summary.Total-1)
	}
	if got := refresher.total(); got != len(domain.SupportedIndicators) {
		t.Errorf("one failure aborted the fan-out: %d of %d indicators attempted", got, len(domain.SupportedIndicators))
	}
	if !strings.Contains(alerts.last(), "vix") {
		t.Errorf("alert %q does not name the failed indicator", alerts.last())
	}
}

func TestForceRefreshDefaultsSessionFromClock(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(etInstant(2026, 3, 2, 12, 0))
	s := NewScheduler(testTracer, newStubRefresher(), &stubCleaner{}, nil, clock)

	summary := s.ForceRefresh(context.Background(), "")
	if summary.Session != domain.SessionIntraday {
		t.Errorf("Session = %s, want intraday", summary.Session)
	}
}

func TestPanickingJobDoesNotKillTheLoop(t *testing.T) {
	t.Parallel()

	refresher := newStubRefresher()
	refresher.panic = true
	alerts := &stubAlerts{}
	clock := newFakeClock(etInstant(2026, 3, 2, 12, 0))
	s := NewScheduler(testTracer, refresher, &stubCleaner{}, alerts, clock)

	s.evaluate(context.Background()) // intraday is due and every fan-out will panic
	s.jobs.Wait()

	if !strings.Contains(alerts.last(), "panic") {
		t.Errorf("alert %q does not report the panic", alerts.last())
	}
}
