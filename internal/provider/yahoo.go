package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider is the backup quote source. It needs no API key and reads
// the public chart endpoint, which carries the regular-market snapshot in
// its meta block.
type YahooProvider struct {
	client   *http.Client
	baseURL  string
	tracer   trace.Tracer
	recorder UsageRecorder
}

func NewYahooProvider(tracer trace.Tracer, recorder UsageRecorder) *YahooProvider {
	return &YahooProvider{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  yahooBaseURL,
		tracer:   tracer,
		recorder: recorder,
	}
}

func (p *YahooProvider) Name() string { return domain.SourceYahooBackup }

func (p *YahooProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	ctx, span := p.tracer.Start(ctx, "yahoo.fetch-quote")
	defer span.End()

	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", p.baseURL, symbol)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "market-pulse/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		p.report(false, time.Since(start).Milliseconds(), ErrUnavailable)
		return nil, fmt.Errorf("yahoo quote %s: %v: %w", symbol, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.report(false, latency, ErrUnavailable)
		return nil, fmt.Errorf("yahoo quote %s: read body: %w", symbol, ErrUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.report(false, latency, ErrRateLimited)
		return nil, fmt.Errorf("yahoo quote %s: status 429: %w", symbol, ErrRateLimited)
	case resp.StatusCode >= 500:
		p.report(false, latency, ErrUnavailable)
		return nil, fmt.Errorf("yahoo quote %s: status %d: %w", symbol, resp.StatusCode, ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		p.report(false, latency, ErrInvalidResponse)
		return nil, fmt.Errorf("yahoo quote %s: status %d: %w", symbol, resp.StatusCode, ErrInvalidResponse)
	}

	quote, err := parseYahooChart(symbol, body)
	if err != nil {
		p.report(false, latency, ErrInvalidResponse)
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}

	p.report(true, latency, nil)
	return quote, nil
}

func parseYahooChart(symbol string, body []byte) (*domain.Quote, error) {
	// Response shape: {"chart": {"result": [{"meta": {"regularMarketPrice": ..., "previousClose": ...}}], "error": null}}
	var raw struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice  float64 `json:"regularMarketPrice"`
					PreviousClose       float64 `json:"previousClose"`
					ChartPreviousClose  float64 `json:"chartPreviousClose"`
					RegularMarketVolume float64 `json:"regularMarketVolume"`
					RegularMarketTime   int64   `json:"regularMarketTime"`
				} `json:"meta"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse chart: %w", ErrInvalidResponse)
	}
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %w", raw.Chart.Error.Code, ErrInvalidResponse)
	}
	if len(raw.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart has no result rows: %w", ErrInvalidResponse)
	}

	meta := raw.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("chart meta has no market price: %w", ErrInvalidResponse)
	}

	prevClose := meta.PreviousClose
	if prevClose == 0 {
		prevClose = meta.ChartPreviousClose
	}

	change := 0.0
	changePct := 0.0
	if prevClose != 0 {
		change = meta.RegularMarketPrice - prevClose
		changePct = change / prevClose * 100
	}

	asOf := time.Now().UTC()
	if meta.RegularMarketTime > 0 {
		asOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}

	return &domain.Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         meta.RegularMarketPrice,
		PrevClose:     prevClose,
		Change:        change,
		ChangePercent: changePct,
		Volume:        meta.RegularMarketVolume,
		AsOf:          asOf,
		Source:        domain.SourceYahooBackup,
	}, nil
}

func (p *YahooProvider) report(success bool, latencyMs int64, errKind error) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(UsageRecord{
		Provider:  p.Name(),
		Endpoint:  "chart",
		Success:   success,
		LatencyMs: latencyMs,
		ErrorKind: Kind(errKind),
	})
}
