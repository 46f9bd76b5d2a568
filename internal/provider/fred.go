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

const fredBaseURL = "https://api.stlouisfed.org"

// FREDProvider fetches macroeconomic series observations (treasury yields
// and friends) from the St. Louis Fed API.
type FREDProvider struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	tracer   trace.Tracer
	recorder UsageRecorder
}

func NewFREDProvider(apiKey string, tracer trace.Tracer, recorder UsageRecorder) *FREDProvider {
	return &FREDProvider{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  fredBaseURL,
		apiKey:   strings.TrimSpace(apiKey),
		tracer:   tracer,
		recorder: recorder,
	}
}

func (p *FREDProvider) Name() string { return domain.SourceFRED }

// FetchSeries fetches up to lookback most recent observations, newest first.
// Observations with the "." placeholder value are skipped.
func (p *FREDProvider) FetchSeries(ctx context.Context, seriesID string, lookback int) (*domain.Series, error) {
	ctx, span := p.tracer.Start(ctx, "fred.fetch-series")
	defer span.End()

	if p.apiKey == "" {
		return nil, fmt.Errorf("fred series %s: api key not configured: %w", seriesID, ErrUnavailable)
	}
	if lookback <= 0 {
		lookback = 30
	}

	url := fmt.Sprintf("%s/fred/series/observations?series_id=%s&api_key=%s&file_type=json&sort_order=desc&limit=%d",
		p.baseURL, seriesID, p.apiKey, lookback)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.report(false, time.Since(start).Milliseconds(), ErrUnavailable)
		return nil, fmt.Errorf("fred series %s: %v: %w", seriesID, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.report(false, latency, ErrUnavailable)
		return nil, fmt.Errorf("fred series %s: read body: %w", seriesID, ErrUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.report(false, latency, ErrRateLimited)
		return nil, fmt.Errorf("fred series %s: status 429: %w", seriesID, ErrRateLimited)
	case resp.StatusCode >= 500:
		p.report(false, latency, ErrUnavailable)
		return nil, fmt.Errorf("fred series %s: status %d: %w", seriesID, resp.StatusCode, ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		p.report(false, latency, ErrInvalidResponse)
		return nil, fmt.Errorf("fred series %s: status %d: %w", seriesID, resp.StatusCode, ErrInvalidResponse)
	}

	// Response shape: {"observations": [{"date": "2026-03-02", "value": "4.25"}, ...]}
	var raw struct {
		Observations []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"observations"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		p.report(false, latency, ErrInvalidResponse)
		return nil, fmt.Errorf("fred series %s: parse: %w", seriesID, ErrInvalidResponse)
	}
	if len(raw.Observations) == 0 {
		p.report(false, latency, ErrInvalidResponse)
		return nil, fmt.Errorf("fred series %s: no observations: %w", seriesID, ErrInvalidResponse)
	}

	points := make([]domain.SeriesPoint, 0, len(raw.Observations))
	for _, obs := range raw.Observations {
		if strings.TrimSpace(obs.Value) == "." {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(obs.Value), 64)
		if err != nil {
			continue
		}
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			continue
		}
		points = append(points, domain.SeriesPoint{Date: date, Value: value})
	}
	if len(points) == 0 {
		p.report(false, latency, ErrInvalidResponse)
		return nil, fmt.Errorf("fred series %s: no usable observations: %w", seriesID, ErrInvalidResponse)
	}

	p.report(true, latency, nil)
	return &domain.Series{ID: seriesID, Points: points, Source: p.Name()}, nil
}

func (p *FREDProvider) report(success bool, latencyMs int64, errKind error) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(UsageRecord{
		Provider:  p.Name(),
		Endpoint:  "series/observations",
		Success:   success,
		LatencyMs: latencyMs,
		ErrorKind: Kind(errKind),
	})
}
