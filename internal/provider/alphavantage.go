package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageProvider is the primary quote and sector-performance source.
// The free tier is tightly rate limited, so calls go through a token
// bucket and rate-limit notices in a 200 body are mapped to ErrRateLimited.
type AlphaVantageProvider struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	tracer   trace.Tracer
	recorder UsageRecorder
	limiter  *RateLimiter
}

// NewAlphaVantageProvider creates the adapter. An empty apiKey is allowed;
// every call then fails as unavailable and the fallback chain moves on.
func NewAlphaVantageProvider(apiKey string, tracer trace.Tracer, recorder UsageRecorder) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		client:   &http.Client{Timeout: 12 * time.Second},
		baseURL:  alphaVantageBaseURL,
		apiKey:   strings.TrimSpace(apiKey),
		tracer:   tracer,
		recorder: recorder,
		limiter:  NewRateLimiter(5, 12*time.Second),
	}
}

func (p *AlphaVantageProvider) Name() string { return domain.SourceAlphaVantage }

// FetchQuote fetches a GLOBAL_QUOTE for one symbol.
func (p *AlphaVantageProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.fetch-quote")
	defer span.End()

	url := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s", p.baseURL, symbol, p.apiKey)
	body, err := p.doRequest(ctx, "GLOBAL_QUOTE", url)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage quote %s: %w", symbol, err)
	}

	// Response shape: {"Global Quote": {"01. symbol": "SPY", "05. price": "512.34", ...}}
	var raw struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		p.report("GLOBAL_QUOTE", false, 0, ErrInvalidResponse)
		return nil, fmt.Errorf("alpha vantage quote %s: parse: %w", symbol, ErrInvalidResponse)
	}
	if len(raw.GlobalQuote) == 0 {
		p.report("GLOBAL_QUOTE", false, 0, ErrInvalidResponse)
		return nil, fmt.Errorf("alpha vantage quote %s: empty global quote: %w", symbol, ErrInvalidResponse)
	}

	price, err := parseFloatField(raw.GlobalQuote, "05. price")
	if err != nil {
		p.report("GLOBAL_QUOTE", false, 0, ErrInvalidResponse)
		return nil, fmt.Errorf("alpha vantage quote %s: %w", symbol, ErrInvalidResponse)
	}
	prevClose, _ := parseFloatField(raw.GlobalQuote, "08. previous close")
	change, _ := parseFloatField(raw.GlobalQuote, "09. change")
	volume, _ := parseFloatField(raw.GlobalQuote, "06. volume")

	changePct := 0.0
	if pct, ok := raw.GlobalQuote["10. change percent"]; ok {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(pct), "%"), 64); err == nil {
			changePct = v
		}
	}

	asOf := time.Now().UTC()
	if day, ok := raw.GlobalQuote["07. latest trading day"]; ok {
		if t, err := time.Parse("2006-01-02", strings.TrimSpace(day)); err == nil {
			asOf = t
		}
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         price,
		PrevClose:     prevClose,
		Change:        change,
		ChangePercent: changePct,
		Volume:        volume,
		AsOf:          asOf,
		Source:        p.Name(),
	}, nil
}

// FetchSectorPerformance fetches the real-time sector performance map.
func (p *AlphaVantageProvider) FetchSectorPerformance(ctx context.Context) (map[string]float64, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.fetch-sectors")
	defer span.End()

	url := fmt.Sprintf("%s/query?function=SECTOR&apikey=%s", p.baseURL, p.apiKey)
	body, err := p.doRequest(ctx, "SECTOR", url)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage sectors: %w", err)
	}

	// Response shape: {"Rank A: Real-Time Performance": {"Information Technology": "1.23%", ...}, ...}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		p.report("SECTOR", false, 0, ErrInvalidResponse)
		return nil, fmt.Errorf("alpha vantage sectors: parse: %w", ErrInvalidResponse)
	}

	var realtime map[string]string
	for key, value := range raw {
		if strings.Contains(key, "Real-Time Performance") {
			if err := json.Unmarshal(value, &realtime); err != nil {
				p.report("SECTOR", false, 0, ErrInvalidResponse)
				return nil, fmt.Errorf("alpha vantage sectors: parse ranking: %w", ErrInvalidResponse)
			}
			break
		}
	}
	if len(realtime) == 0 {
		p.report("SECTOR", false, 0, ErrInvalidResponse)
		return nil, fmt.Errorf("alpha vantage sectors: no real-time ranking: %w", ErrInvalidResponse)
	}

	sectors := make(map[string]float64, len(realtime))
	for sector, pct := range realtime {
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(pct), "%"), 64)
		if err != nil {
			continue
		}
		sectors[sector] = v
	}
	if len(sectors) == 0 {
		p.report("SECTOR", false, 0, ErrInvalidResponse)
		return nil, fmt.Errorf("alpha vantage sectors: no parsable rows: %w", ErrInvalidResponse)
	}
	return sectors, nil
}

func (p *AlphaVantageProvider) doRequest(ctx context.Context, endpoint, url string) ([]byte, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("api key not configured: %w", ErrUnavailable)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", ErrUnavailable)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.report(endpoint, false, time.Since(start).Milliseconds(), ErrUnavailable)
		return nil, fmt.Errorf("request: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.report(endpoint, false, latency, ErrUnavailable)
		return nil, fmt.Errorf("read body: %v: %w", err, ErrUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.report(endpoint, false, latency, ErrRateLimited)
		return nil, fmt.Errorf("status 429: %w", ErrRateLimited)
	case resp.StatusCode >= 500:
		p.report(endpoint, false, latency, ErrUnavailable)
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		p.report(endpoint, false, latency, ErrInvalidResponse)
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrInvalidResponse)
	}

	// The free tier reports quota exhaustion inside a 200 body.
	if isRateLimitBody(body) {
		p.report(endpoint, false, latency, ErrRateLimited)
		return nil, fmt.Errorf("rate limit notice in body: %w", ErrRateLimited)
	}

	p.report(endpoint, true, latency, nil)
	return body, nil
}

func isRateLimitBody(body []byte) bool {
	var notice struct {
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := json.Unmarshal(body, &notice); err != nil {
		return false
	}
	return notice.Note != "" || notice.Information != ""
}

func (p *AlphaVantageProvider) report(endpoint string, success bool, latencyMs int64, errKind error) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(UsageRecord{
		Provider:  p.Name(),
		Endpoint:  endpoint,
		Success:   success,
		LatencyMs: latencyMs,
		ErrorKind: Kind(errKind),
	})
}

func parseFloatField(fields map[string]string, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}
