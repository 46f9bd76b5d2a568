// Package orchestrator resolves indicators through per-indicator fallback
// chains. Adapters are tried strictly in priority order, one attempt each;
// any adapter error advances the chain. The final entry of every chain is
// the deterministic mock generator, so callers always get a value and the
// source tag tells them what kind.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// attemptTimeout bounds a single adapter attempt, independent of the
// adapter's own HTTP client timeout.
const attemptTimeout = 15 * time.Second

type QuoteFetcher interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

type SectorFetcher interface {
	Name() string
	FetchSectorPerformance(ctx context.Context) (map[string]float64, error)
}

type SeriesFetcher interface {
	Name() string
	FetchSeries(ctx context.Context, seriesID string, lookback int) (*domain.Series, error)
}

// PrimaryProvider is the full surface of the primary market-data source.
type PrimaryProvider interface {
	QuoteFetcher
	SectorFetcher
}

// MockSource is the terminal chain entry; it must never fail.
type MockSource interface {
	QuoteFetcher
	SectorFetcher
	SeriesFetcher
}

// source is one link in a fallback chain.
type source interface {
	name() string
	fetch(ctx context.Context) (*domain.MarketIndicator, error)
}

type Orchestrator struct {
	tracer trace.Tracer
	chains map[domain.IndicatorType][]source
	macro  []SeriesFetcher
	now    func() time.Time
}

// New wires the static fallback chains: primary quote source, then the
// backup, then the mock generator; macro series go FRED-first.
func New(tracer trace.Tracer, primary PrimaryProvider, backup QuoteFetcher, macro SeriesFetcher, mock MockSource) *Orchestrator {
	o := &Orchestrator{tracer: tracer, macro: []SeriesFetcher{macro, mock}, now: time.Now}
	o.chains = map[domain.IndicatorType][]source{
		domain.IndicatorSP500: {
			quoteSource{domain.IndicatorSP500, primary, "SPY"},
			quoteSource{domain.IndicatorSP500, backup, "^GSPC"},
			quoteSource{domain.IndicatorSP500, mock, "SPY"},
		},
		domain.IndicatorVIX: {
			quoteSource{domain.IndicatorVIX, primary, "VIX"},
			quoteSource{domain.IndicatorVIX, backup, "^VIX"},
			quoteSource{domain.IndicatorVIX, mock, "VIX"},
		},
		domain.IndicatorSectors: {
			sectorSource{primary, o.timestamp},
			sectorSource{mock, o.timestamp},
		},
		domain.IndicatorTreasuryYield: {
			seriesSource{macro, "DGS10", 30},
			seriesSource{mock, "DGS10", 30},
		},
	}
	return o
}

// timestamp stamps results whose upstream payload carries no as-of time.
func (o *Orchestrator) timestamp() time.Time { return o.now().UTC() }

// GetSeries resolves a raw macro series through the same fallback policy:
// FRED first, then the mock generator.
func (o *Orchestrator) GetSeries(ctx context.Context, seriesID string, lookback int) (*domain.Series, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.get-series")
	defer span.End()
	span.SetAttributes(attribute.String("series", seriesID))

	for _, fetcher := range o.macro {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		series, err := fetcher.FetchSeries(attemptCtx, seriesID, lookback)
		cancel()
		if err != nil {
			log.Printf("orchestrator: series %s via %s failed, trying next: %v", seriesID, fetcher.Name(), err)
			continue
		}
		return series, nil
	}
	return nil, fmt.Errorf("series %s: %w", seriesID, provider.ErrAllProvidersExhausted)
}

// GetIndicator walks the indicator's chain until an adapter delivers.
// With the mock tail in place the only error paths are an unknown
// indicator type or a chain misconfigured without a tail.
func (o *Orchestrator) GetIndicator(ctx context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.get-indicator")
	defer span.End()
	span.SetAttributes(attribute.String("indicator", string(indicator)))

	chain, ok := o.chains[indicator]
	if !ok {
		return nil, fmt.Errorf("no fallback chain for indicator %q", indicator)
	}

	for _, src := range chain {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		result, err := src.fetch(attemptCtx)
		cancel()
		if err != nil {
			log.Printf("orchestrator: %s via %s failed, trying next: %v", indicator, src.name(), err)
			continue
		}
		return result, nil
	}

	// Only reachable when a chain is misconfigured without its mock tail.
	return nil, fmt.Errorf("indicator %s: %w", indicator, provider.ErrAllProvidersExhausted)
}

type quoteSource struct {
	indicator domain.IndicatorType
	fetcher   QuoteFetcher
	symbol    string
}

func (s quoteSource) name() string { return s.fetcher.Name() }

func (s quoteSource) fetch(ctx context.Context) (*domain.MarketIndicator, error) {
	quote, err := s.fetcher.FetchQuote(ctx, s.symbol)
	if err != nil {
		return nil, err
	}
	return &domain.MarketIndicator{
		Type:          s.indicator,
		Value:         quote.Price,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		Volume:        quote.Volume,
		AsOf:          quote.AsOf,
		Trend:         domain.TrendForChange(quote.ChangePercent),
		Source:        quote.Source,
	}, nil
}

type sectorSource struct {
	fetcher SectorFetcher
	now     func() time.Time
}

func (s sectorSource) name() string { return s.fetcher.Name() }

func (s sectorSource) fetch(ctx context.Context) (*domain.MarketIndicator, error) {
	sectors, err := s.fetcher.FetchSectorPerformance(ctx)
	if err != nil {
		return nil, err
	}
	avg := 0.0
	for _, pct := range sectors {
		avg += pct
	}
	if len(sectors) > 0 {
		avg /= float64(len(sectors))
	}
	return &domain.MarketIndicator{
		Type:          domain.IndicatorSectors,
		Value:         avg,
		ChangePercent: avg,
		Sectors:       sectors,
		AsOf:          s.now(),
		Trend:         domain.TrendForChange(avg),
		Source:        s.fetcher.Name(),
	}, nil
}

type seriesSource struct {
	fetcher  SeriesFetcher
	seriesID string
	lookback int
}

func (s seriesSource) name() string { return s.fetcher.Name() }

func (s seriesSource) fetch(ctx context.Context) (*domain.MarketIndicator, error) {
	series, err := s.fetcher.FetchSeries(ctx, s.seriesID, s.lookback)
	if err != nil {
		return nil, err
	}
	latest, ok := series.Latest()
	if !ok {
		return nil, fmt.Errorf("series %s: no points", s.seriesID)
	}

	change := 0.0
	changePct := 0.0
	if len(series.Points) > 1 && series.Points[1].Value != 0 {
		change = latest.Value - series.Points[1].Value
		changePct = change / series.Points[1].Value * 100
	}

	return &domain.MarketIndicator{
		Type:          domain.IndicatorTreasuryYield,
		Value:         latest.Value,
		Change:        change,
		ChangePercent: changePct,
		AsOf:          latest.Date,
		Trend:         domain.TrendForChange(changePct),
		Source:        series.Source,
	}, nil
}
