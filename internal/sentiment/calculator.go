// Package sentiment computes the composite fear/greed index from the live
// market indicators. Every component degrades independently to the neutral
// default, so Compute always yields a complete index even when every
// upstream signal is down.
package sentiment

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Component weights, summing to 1.0.
const (
	weightVolatility = 0.25
	weightVolume     = 0.15
	weightMomentum   = 0.20
	weightBreadth    = 0.15
	weightSafeHaven  = 0.10
	weightJunkBond   = 0.10
	weightPutCall    = 0.05
)

// baselineVolume approximates SPY's trailing 20-session average daily
// volume, used as the denominator for the volume-ratio component.
const baselineVolume = 75_000_000

// indexSource tags composite results in the cache; the index is derived,
// not fetched, so none of the adapter tags apply.
const indexSource = "calculated"

type IndicatorSource interface {
	GetIndicator(ctx context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error)
}

type Calculator struct {
	tracer trace.Tracer
	source IndicatorSource
	now    func() time.Time
}

func NewCalculator(tracer trace.Tracer, source IndicatorSource) *Calculator {
	return &Calculator{tracer: tracer, source: source, now: time.Now}
}

// Compute fetches the four live inputs concurrently, scores the seven
// components, and folds them into the weighted index. It never returns an
// error: a failed input only defaults its components to the neutral 50.
func (c *Calculator) Compute(ctx context.Context) *domain.FearGreedIndex {
	ctx, span := c.tracer.Start(ctx, "sentiment.compute")
	defer span.End()

	inputs := c.fetchInputs(ctx)

	components := domain.FearGreedComponents{
		Volatility: scoreInput(inputs[domain.IndicatorVIX], volatilityScore),
		Volume:     scoreInput(inputs[domain.IndicatorSP500], volumeScore),
		Momentum:   scoreInput(inputs[domain.IndicatorSP500], momentumScore),
		Breadth:    scoreInput(inputs[domain.IndicatorSectors], breadthScore),
		SafeHaven:  scoreInput(inputs[domain.IndicatorTreasuryYield], safeHavenScore),
		// No junk-bond-spread or put/call-ratio feed is wired yet; both
		// hold the neutral default until a provider exists.
		JunkBond: domain.DefaultedComponent(),
		PutCall:  domain.DefaultedComponent(),
	}

	weighted := weightVolatility*components.Volatility.Score +
		weightVolume*components.Volume.Score +
		weightMomentum*components.Momentum.Score +
		weightBreadth*components.Breadth.Score +
		weightSafeHaven*components.SafeHaven.Score +
		weightJunkBond*components.JunkBond.Score +
		weightPutCall*components.PutCall.Score

	value := int(math.Round(clamp(weighted, 0, 100)))

	index := &domain.FearGreedIndex{
		Value:      value,
		Status:     domain.StatusForValue(value),
		Confidence: confidence(components),
		Components: components,
		ComputedAt: c.now().UTC(),
		Source:     indexSource,
	}

	span.SetAttributes(
		attribute.Int("fear_greed.value", index.Value),
		attribute.String("fear_greed.status", string(index.Status)),
		attribute.Int("fear_greed.confidence", index.Confidence),
	)
	return index
}

// fetchInputs resolves the component inputs concurrently; a nil map entry
// means that input failed.
func (c *Calculator) fetchInputs(ctx context.Context) map[domain.IndicatorType]*domain.MarketIndicator {
	needed := []domain.IndicatorType{
		domain.IndicatorSP500,
		domain.IndicatorVIX,
		domain.IndicatorSectors,
		domain.IndicatorTreasuryYield,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	inputs := make(map[domain.IndicatorType]*domain.MarketIndicator, len(needed))

	for _, indicator := range needed {
		wg.Add(1)
		go func(indicator domain.IndicatorType) {
			defer wg.Done()
			result, err := c.source.GetIndicator(ctx, indicator)
			if err != nil {
				log.Printf("sentiment: input %s unavailable, component defaults to neutral: %v", indicator, err)
				return
			}
			mu.Lock()
			inputs[indicator] = result
			mu.Unlock()
		}(indicator)
	}
	wg.Wait()
	return inputs
}

// scoreInput applies a component mapping, defaulting when the input is
// missing.
func scoreInput(input *domain.MarketIndicator, score func(*domain.MarketIndicator) float64) domain.FearGreedComponent {
	if input == nil {
		return domain.DefaultedComponent()
	}
	return domain.FearGreedComponent{Score: clamp(score(input), 0, 100)}
}

// volatilityScore maps the VIX level through the five standard bands,
// interpolating linearly inside each: ≤15 → 90–100, 15–20 → 70–90,
// 20–25 → 40–70, 25–35 → 20–40, >35 → 0–20.
func volatilityScore(vix *domain.MarketIndicator) float64 {
	v := vix.Value
	switch {
	case v <= 15:
		return 90 + (15-v)/15*10
	case v <= 20:
		return 90 - (v-15)/5*20
	case v <= 25:
		return 70 - (v-20)/5*30
	case v <= 35:
		return 40 - (v-25)/10*20
	default:
		return 20 - (v-35)/15*20
	}
}

// volumeScore treats heavy tape as fearful and quiet tape as complacent:
// score = 100 - 50×(volume / 20-day baseline), so the baseline itself
// lands on the neutral 50 and double the baseline scores 0.
func volumeScore(sp500 *domain.MarketIndicator) float64 {
	ratio := sp500.Volume / baselineVolume
	return 100 - 50*ratio
}

// momentumScore is linear in the day-over-day change: ±5% saturates the
// scale (50 + 10×changePct).
func momentumScore(sp500 *domain.MarketIndicator) float64 {
	return 50 + 10*sp500.ChangePercent
}

// breadthScore is the advancing fraction of sectors scaled to 0–100.
func breadthScore(sectors *domain.MarketIndicator) float64 {
	if len(sectors.Sectors) == 0 {
		return domain.NeutralComponentScore
	}
	advancing := 0
	for _, pct := range sectors.Sectors {
		if pct > 0 {
			advancing++
		}
	}
	return float64(advancing) / float64(len(sectors.Sectors)) * 100
}

// safeHavenScore reads the 10-year yield level as appetite for risk:
// money leaving bonds pushes yields up. Linear from 1% (0) to 5% (100),
// so a 3% yield is neutral.
func safeHavenScore(treasury *domain.MarketIndicator) float64 {
	return (treasury.Value - 1.0) * 25
}

// confidence is 60 plus up to 40 more as components stop defaulting.
func confidence(components domain.FearGreedComponents) int {
	all := components.All()
	computed := 0
	for _, component := range all {
		if !component.Defaulted {
			computed++
		}
	}
	return int(math.Round(60 + 40*float64(computed)/float64(len(all))))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
