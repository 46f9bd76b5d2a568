// Package marketclock holds the exchange-local wall-clock rules: market
// hours, session classification, and the freshness window each indicator
// gets inside and outside those hours. Everything here is a pure function
// of the supplied instant; the host time zone is never consulted.
package marketclock

import (
	"time"

	"market-pulse/internal/domain"
)

// NYSE trading window, exchange-local.
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0
)

// sessionEdgeWindow is how long after the open (and before the close) an
// instant still counts as the market_open / market_close session.
const sessionEdgeWindow = 30 * time.Minute

var exchangeLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("marketclock: load exchange location: " + err.Error())
	}
	return loc
}

// Clock supplies the current instant. Production code uses SystemClock;
// tests inject fixed instants.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ExchangeTime converts an instant to the exchange's local time zone.
func ExchangeTime(t time.Time) time.Time {
	return t.In(exchangeLocation)
}

// IsMarketHours reports whether t falls inside the Monday-Friday trading
// window, evaluated in the exchange's time zone.
func IsMarketHours(t time.Time) bool {
	local := ExchangeTime(t)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), openHour, openMinute, 0, 0, exchangeLocation)
	close := time.Date(local.Year(), local.Month(), local.Day(), closeHour, closeMinute, 0, 0, exchangeLocation)
	return !local.Before(open) && local.Before(close)
}

// OpenTime and CloseTime return the trading window edges for t's exchange-
// local day, regardless of weekday.
func OpenTime(t time.Time) time.Time {
	local := ExchangeTime(t)
	return time.Date(local.Year(), local.Month(), local.Day(), openHour, openMinute, 0, 0, exchangeLocation)
}

func CloseTime(t time.Time) time.Time {
	local := ExchangeTime(t)
	return time.Date(local.Year(), local.Month(), local.Day(), closeHour, closeMinute, 0, 0, exchangeLocation)
}

// CurrentSession buckets an instant into a market session. The first
// half hour of trading is market_open, the last half hour market_close,
// the rest of the window intraday, everything else after_hours.
func CurrentSession(t time.Time) domain.MarketSession {
	if !IsMarketHours(t) {
		return domain.SessionAfterHours
	}
	local := ExchangeTime(t)
	if local.Sub(OpenTime(t)) < sessionEdgeWindow {
		return domain.SessionMarketOpen
	}
	if CloseTime(t).Sub(local) <= sessionEdgeWindow {
		return domain.SessionMarketClose
	}
	return domain.SessionIntraday
}

// TTLFor returns the freshness window for an indicator at a given instant.
// Real-time indicators turn over in minutes while the market trades; once
// it closes the underlying value cannot change, so the window stretches.
func TTLFor(indicator domain.IndicatorType, t time.Time) time.Duration {
	inHours := IsMarketHours(t)
	switch indicator {
	case domain.IndicatorSP500, domain.IndicatorVIX:
		if inHours {
			return 5 * time.Minute
		}
		return 30 * time.Minute
	case domain.IndicatorSectors:
		if inHours {
			return 30 * time.Minute
		}
		return 2 * time.Hour
	case domain.IndicatorTreasuryYield:
		if inHours {
			return time.Hour
		}
		return 4 * time.Hour
	case domain.IndicatorFearGreed:
		if inHours {
			return 15 * time.Minute
		}
		return time.Hour
	default:
		if inHours {
			return 10 * time.Minute
		}
		return time.Hour
	}
}
