package domain

import (
	"encoding/json"
	"time"
)

type IndicatorType string

const (
	IndicatorSP500         IndicatorType = "sp500"
	IndicatorVIX           IndicatorType = "vix"
	IndicatorSectors       IndicatorType = "sector_performance"
	IndicatorTreasuryYield IndicatorType = "treasury_yield"
	IndicatorFearGreed     IndicatorType = "fear_greed"
)

// SupportedIndicators lists every indicator the orchestrator can resolve.
var SupportedIndicators = []IndicatorType{
	IndicatorSP500,
	IndicatorVIX,
	IndicatorSectors,
	IndicatorTreasuryYield,
	IndicatorFearGreed,
}

func (t IndicatorType) IsValid() bool {
	for _, known := range SupportedIndicators {
		if t == known {
			return true
		}
	}
	return false
}

type MarketSession string

const (
	SessionMarketOpen  MarketSession = "market_open"
	SessionMarketClose MarketSession = "market_close"
	SessionIntraday    MarketSession = "intraday"
	SessionAfterHours  MarketSession = "after_hours"
)

func (s MarketSession) IsValid() bool {
	switch s {
	case SessionMarketOpen, SessionMarketClose, SessionIntraday, SessionAfterHours:
		return true
	}
	return false
}

// Source tags carried on every normalized result so callers can tell real
// data from synthetic or cache-served data.
const (
	SourceAlphaVantage = "alpha_vantage"
	SourceYahooBackup  = "yahoo_finance_backup"
	SourceFRED         = "fred"
	SourceMock         = "mock_data"
	SourceCache        = "supabase_cache"
)

type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// TrendForChange maps a day-over-day change to a trend bucket. Moves inside
// a small dead band count as stable.
func TrendForChange(changePercent float64) Trend {
	switch {
	case changePercent > 0.1:
		return TrendRising
	case changePercent < -0.1:
		return TrendFalling
	default:
		return TrendStable
	}
}

// Quote is the normalized shape every quote adapter returns.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PrevClose     float64   `json:"prev_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"`
	AsOf          time.Time `json:"as_of"`
	Source        string    `json:"source"`
}

type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is the normalized shape every macro-series adapter returns,
// newest point first.
type Series struct {
	ID     string        `json:"id"`
	Points []SeriesPoint `json:"points"`
	Source string        `json:"source"`
}

func (s *Series) Latest() (SeriesPoint, bool) {
	if s == nil || len(s.Points) == 0 {
		return SeriesPoint{}, false
	}
	return s.Points[0], true
}

// MarketIndicator is the orchestrator's normalized output. Only the
// orchestrator constructs these; callers receive them read-only.
type MarketIndicator struct {
	Type          IndicatorType      `json:"type"`
	Value         float64            `json:"value"`
	Change        float64            `json:"change"`
	ChangePercent float64            `json:"change_percent"`
	Volume        float64            `json:"volume,omitempty"`
	Sectors       map[string]float64 `json:"sectors,omitempty"`
	AsOf          time.Time          `json:"as_of"`
	Trend         Trend              `json:"trend"`
	Source        string             `json:"source"`
}

// CacheEntry is the stored unit of the market data cache, keyed by
// (DataType, Session). An entry whose ExpiresAt has passed is treated as
// absent even while physically stored.
type CacheEntry struct {
	DataType     IndicatorType   `json:"data_type"`
	Session      MarketSession   `json:"market_session"`
	Payload      json.RawMessage `json:"data_payload"`
	CachedAt     time.Time       `json:"cache_timestamp"`
	ExpiresAt    time.Time       `json:"expiry_timestamp"`
	Source       string          `json:"api_source"`
	QualityScore int             `json:"data_quality_score"`
}

func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// RefreshResult is one indicator's outcome within a scheduler run.
type RefreshResult struct {
	Indicator  IndicatorType `json:"indicator"`
	Source     string        `json:"source,omitempty"`
	Error      string        `json:"error,omitempty"`
	DurationMs int64         `json:"duration_ms"`
}

func (r RefreshResult) OK() bool { return r.Error == "" }

// UpdateSummary is the immutable result of one scheduler job run.
type UpdateSummary struct {
	Job        string          `json:"job"`
	Session    MarketSession   `json:"session"`
	Total      int             `json:"total"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	DurationMs int64           `json:"duration_ms"`
	Results    []RefreshResult `json:"results"`
	StartedAt  time.Time       `json:"started_at"`
}

// CacheStats is the snapshot returned by the stats endpoint.
type CacheStats struct {
	TotalEntries   int             `json:"total_entries"`
	ExpiredEntries int             `json:"expired_entries"`
	Hits           int64           `json:"hits"`
	Misses         int64           `json:"misses"`
	HitRate        float64         `json:"hit_rate"`
	DataTypes      []IndicatorType `json:"data_types"`
}
