// Package job drives the periodic cache refresh cycle. A single loop
// ticks once a minute, evaluates the trigger rules against exchange-local
// time, and launches whichever job bodies are due, each in its own
// goroutine so a slow job never delays another trigger. Job bodies fan
// out per indicator and isolate failures; nothing that happens inside a
// job may stop the loop.
package job

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/marketclock"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultEvalTick  = time.Minute
	intradayInterval = 15 * time.Minute
	cleanupHour      = 2 // 02:00 exchange-local, well outside trading
)

const (
	jobMarketOpen   = "market-open"
	jobMarketClose  = "market-close"
	jobIntraday     = "intraday"
	jobCacheCleanup = "cache-cleanup"
	jobForceRefresh = "force-refresh"
)

type IndicatorRefresher interface {
	RefreshIndicator(ctx context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error)
}

type CacheCleaner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AlertSink receives operational failures; delivery is best effort.
type AlertSink interface {
	Notify(ctx context.Context, message string) error
}

type Scheduler struct {
	tracer        trace.Tracer
	service       IndicatorRefresher
	cleaner       CacheCleaner
	alerts        AlertSink
	clock         marketclock.Clock
	tick          time.Duration
	intradayEvery time.Duration

	// lastRun tracks the most recent firing per trigger so daily triggers
	// fire at most once per scheduled instant. Only the trigger loop
	// touches it.
	lastRun map[string]time.Time

	// jobs counts in-flight job bodies so shutdown and tests can join them.
	jobs sync.WaitGroup
}

func NewScheduler(
	tracer trace.Tracer,
	service IndicatorRefresher,
	cleaner CacheCleaner,
	alerts AlertSink,
	clock marketclock.Clock,
) *Scheduler {
	if clock == nil {
		clock = marketclock.SystemClock{}
	}
	// Daily triggers start pinned to "now" so scheduled instants that
	// passed before the process came up are not replayed, cron-style.
	now := clock.Now()
	return &Scheduler{
		tracer:        tracer,
		service:       service,
		cleaner:       cleaner,
		alerts:        alerts,
		clock:         clock,
		tick:          defaultEvalTick,
		intradayEvery: intradayInterval,
		lastRun: map[string]time.Time{
			jobMarketOpen:   now,
			jobMarketClose:  now,
			jobCacheCleanup: now,
		},
	}
}

// SetIntervals overrides the evaluation tick and the intraday interval;
// zero values keep the defaults.
func (s *Scheduler) SetIntervals(evalTick, intradayEvery time.Duration) {
	if evalTick > 0 {
		s.tick = evalTick
	}
	if intradayEvery > 0 {
		s.intradayEvery = intradayEvery
	}
}

// Start runs the trigger loop until ctx is cancelled. Triggers are
// evaluated immediately on start, then once per tick.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("scheduler: starting, evaluating triggers every %s", s.tick)

	s.evaluate(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.jobs.Wait()
			log.Println("scheduler: stopped")
			return
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// evaluate launches every due trigger's body. Bookkeeping happens here in
// the loop; the bodies run detached, so one job in flight never delays
// another trigger from firing.
func (s *Scheduler) evaluate(ctx context.Context) {
	now := s.clock.Now()

	if due, at := s.dailyDue(jobMarketOpen, now, marketclock.OpenTime, true); due {
		s.lastRun[jobMarketOpen] = at
		s.launch(ctx, jobMarketOpen, func(ctx context.Context) {
			s.runRefresh(ctx, jobMarketOpen, marketclock.CurrentSession(now))
		})
	}
	if due, at := s.dailyDue(jobMarketClose, now, marketclock.CloseTime, true); due {
		s.lastRun[jobMarketClose] = at
		s.launch(ctx, jobMarketClose, func(ctx context.Context) {
			s.runRefresh(ctx, jobMarketClose, marketclock.CurrentSession(now))
		})
	}
	if now.Sub(s.lastRun[jobIntraday]) >= s.intradayEvery {
		s.lastRun[jobIntraday] = now
		// Fires around the clock; outside market hours the body is a no-op.
		if marketclock.IsMarketHours(now) {
			s.launch(ctx, jobIntraday, func(ctx context.Context) {
				s.runRefresh(ctx, jobIntraday, marketclock.CurrentSession(now))
			})
		}
	}
	if due, at := s.dailyDue(jobCacheCleanup, now, cleanupTime, false); due {
		s.lastRun[jobCacheCleanup] = at
		s.launch(ctx, jobCacheCleanup, s.runCleanup)
	}
}

// launch runs a job body in its own goroutine. Jobs write disjoint cache
// keys, so overlapping bodies are safe.
func (s *Scheduler) launch(ctx context.Context, name string, body func(context.Context)) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.runGuarded(ctx, name, body)
	}()
}

// dailyDue reports whether a once-a-day trigger has a scheduled instant
// that is in the past and not yet fired. scheduleFor maps an instant to
// that day's scheduled time; weekdaysOnly skips weekend days entirely.
func (s *Scheduler) dailyDue(name string, now time.Time, scheduleFor func(time.Time) time.Time, weekdaysOnly bool) (bool, time.Time) {
	// Walk back at most a week to find the most recent eligible day.
	for back := 0; back < 8; back++ {
		day := now.AddDate(0, 0, -back)
		if weekdaysOnly {
			wd := marketclock.ExchangeTime(day).Weekday()
			if wd == time.Saturday || wd == time.Sunday {
				continue
			}
		}
		at := scheduleFor(day)
		if at.After(now) {
			continue
		}
		return at.After(s.lastRun[name]), at
	}
	return false, time.Time{}
}

func cleanupTime(t time.Time) time.Time {
	local := marketclock.ExchangeTime(t)
	return time.Date(local.Year(), local.Month(), local.Day(), cleanupHour, 0, 0, 0, local.Location())
}

// runGuarded keeps a panicking job body from taking down the loop.
func (s *Scheduler) runGuarded(ctx context.Context, name string, body func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: job %s panicked: %v", name, r)
			s.alert(ctx, fmt.Sprintf("job %s panicked: %v", name, r))
		}
	}()
	body(ctx)
}

// ForceRefresh runs the refresh body on demand, outside the trigger
// rules, and returns its summary. The admin endpoint calls this.
func (s *Scheduler) ForceRefresh(ctx context.Context, session domain.MarketSession) *domain.UpdateSummary {
	if !session.IsValid() {
		session = marketclock.CurrentSession(s.clock.Now())
	}
	return s.runRefresh(ctx, jobForceRefresh, session)
}

// runRefresh fans out every supported indicator concurrently, collects
// per-indicator results, and reports the run. One indicator failing never
// aborts the others.
func (s *Scheduler) runRefresh(ctx context.Context, jobName string, session domain.MarketSession) *domain.UpdateSummary {
	ctx, span := s.tracer.Start(ctx, "scheduler.refresh")
	defer span.End()
	span.SetAttributes(
		attribute.String("job", jobName),
		attribute.String("session", string(session)),
	)

	started := s.clock.Now()
	indicators := domain.SupportedIndicators
	results := make([]domain.RefreshResult, len(indicators))

	var wg sync.WaitGroup
	for i, indicator := range indicators {
		wg.Add(1)
		go func(i int, indicator domain.IndicatorType) {
			defer wg.Done()
			begin := time.Now()
			defer func() {
				if r := recover(); r != nil {
					results[i] = domain.RefreshResult{
						Indicator:  indicator,
						Error:      fmt.Sprintf("panic: %v", r),
						DurationMs: time.Since(begin).Milliseconds(),
					}
				}
			}()
			fresh, err := s.service.RefreshIndicator(ctx, indicator)
			result := domain.RefreshResult{
				Indicator:  indicator,
				DurationMs: time.Since(begin).Milliseconds(),
			}
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Source = fresh.Source
			}
			results[i] = result
		}(i, indicator)
	}
	wg.Wait()

	summary := &domain.UpdateSummary{
		Job:        jobName,
		Session:    session,
		Total:      len(results),
		DurationMs: s.clock.Now().Sub(started).Milliseconds(),
		Results:    results,
		StartedAt:  started,
	}
	for _, result := range results {
		if result.OK() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	log.Printf("scheduler: %s finished: %d/%d indicators refreshed in %dms",
		jobName, summary.Succeeded, summary.Total, summary.DurationMs)
	if summary.Failed > 0 {
		s.alert(ctx, refreshFailureMessage(summary))
	}
	return summary
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "scheduler.cleanup")
	defer span.End()

	deleted, err := s.cleaner.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		log.Printf("scheduler: cache cleanup failed: %v", err)
		s.alert(ctx, fmt.Sprintf("cache cleanup failed: %v", err))
		return
	}
	log.Printf("scheduler: cache cleanup removed %d expired entries", deleted)
}

func (s *Scheduler) alert(ctx context.Context, message string) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.Notify(ctx, message); err != nil {
		log.Printf("scheduler: alert delivery failed: %v", err)
	}
}

func refreshFailureMessage(summary *domain.UpdateSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s refresh: %d of %d indicators failed", summary.Job, summary.Failed, summary.Total)
	for _, result := range summary.Results {
		if !result.OK() {
			fmt.Fprintf(&b, "\n- %s: %s", result.Indicator, result.Error)
		}
	}
	return b.String()
}
