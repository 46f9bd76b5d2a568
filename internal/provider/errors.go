package provider

import (
	"context"
	"errors"
	"net"
)

// The three error kinds every adapter maps its upstream failures into.
// The orchestrator treats all of them as advance-to-next-adapter; the
// distinction survives only for usage tracking and logs.
var (
	// ErrRateLimited means the provider explicitly signaled quota
	// exhaustion (HTTP 429 or a rate-limit notice in the body).
	ErrRateLimited = errors.New("provider rate limited")

	// ErrUnavailable covers network errors, timeouts, and 5xx responses.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrInvalidResponse marks a payload that arrived but could not be
	// parsed into the normalized shape.
	ErrInvalidResponse = errors.New("invalid provider response")

	// ErrAllProvidersExhausted is only reachable when a chain has no mock
	// tail; kept for completeness.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// Kind names the taxonomy bucket of an adapter error, for usage records.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrUnavailable), isNetworkErr(err):
		return "unavailable"
	default:
		return "other"
	}
}

func isNetworkErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// UsageRecord is one adapter call reported to the usage-tracking sink.
type UsageRecord struct {
	Provider  string
	Endpoint  string
	Success   bool
	LatencyMs int64
	ErrorKind string
}

// UsageRecorder receives usage records fire-and-forget: implementations
// must never block the data path or surface their own failures.
type UsageRecorder interface {
	Record(rec UsageRecord)
}
