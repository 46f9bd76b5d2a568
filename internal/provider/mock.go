package provider

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"market-pulse/internal/domain"
)

// MockProvider is the deterministic terminal entry of every fallback
// chain. It never fails and never touches the network; values derive from
// the symbol and the UTC day, so repeated calls within a day agree.
// Results are tagged mock_data so consumers can tell synthetic data apart.
type MockProvider struct {
	now func() time.Time
}

func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now}
}

func (p *MockProvider) Name() string { return domain.SourceMock }

var mockBaselines = map[string]float64{
	"SPY":   480.0,
	"^GSPC": 4800.0,
	"VIX":   18.0,
	"^VIX":  18.0,
	"DGS10": 4.2,
}

func (p *MockProvider) FetchQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	now := p.now().UTC()
	base := mockBaselines[symbol]
	if base == 0 {
		base = 100.0
	}

	// Drift within ±2% of the baseline, fixed for the day.
	drift := (dayFraction(symbol, now) - 0.5) * 0.04
	price := round2(base * (1 + drift))
	prevClose := round2(base * (1 + (dayFraction(symbol, now.AddDate(0, 0, -1))-0.5)*0.04))
	change := round2(price - prevClose)
	changePct := 0.0
	if prevClose != 0 {
		changePct = round2(change / prevClose * 100)
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         price,
		PrevClose:     prevClose,
		Change:        change,
		ChangePercent: changePct,
		Volume:        math.Floor(50_000_000 * (0.8 + 0.4*dayFraction(symbol+":vol", now))),
		AsOf:          now,
		Source:        p.Name(),
	}, nil
}

var mockSectors = []string{
	"Information Technology", "Health Care", "Financials", "Energy",
	"Consumer Discretionary", "Consumer Staples", "Industrials",
	"Materials", "Utilities", "Real Estate", "Communication Services",
}

func (p *MockProvider) FetchSectorPerformance(_ context.Context) (map[string]float64, error) {
	now := p.now().UTC()
	out := make(map[string]float64, len(mockSectors))
	for _, sector := range mockSectors {
		out[sector] = round2((dayFraction(sector, now) - 0.5) * 4)
	}
	return out, nil
}

func (p *MockProvider) FetchSeries(_ context.Context, seriesID string, lookback int) (*domain.Series, error) {
	if lookback <= 0 {
		lookback = 30
	}
	now := p.now().UTC()
	base := mockBaselines[seriesID]
	if base == 0 {
		base = 3.5
	}

	points := make([]domain.SeriesPoint, 0, lookback)
	for i := 0; i < lookback; i++ {
		day := now.AddDate(0, 0, -i)
		points = append(points, domain.SeriesPoint{
			Date:  time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Value: round2(base * (1 + (dayFraction(seriesID, day)-0.5)*0.1)),
		})
	}
	return &domain.Series{ID: seriesID, Points: points, Source: p.Name()}, nil
}

// dayFraction hashes a key and a UTC day into a stable value in [0, 1).
func dayFraction(key string, day time.Time) float64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	h.Write([]byte(day.UTC().Format("2006-01-02")))
	return float64(h.Sum64()%10_000) / 10_000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
