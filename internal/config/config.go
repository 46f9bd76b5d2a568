package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        int

	AlphaVantageAPIKey string
	FREDAPIKey         string

	TelegramBotToken string
	TelegramChatID   string

	AdminAPIKey string

	SchedulerEnabled  bool
	EvalTickSecs      int
	IntradayEveryMins int
}

// Load reads configuration from the environment. Missing provider API
// keys are warnings, not errors: the fallback chains degrade to mock data
// so the service always comes up.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		AlphaVantageAPIKey: strings.TrimSpace(os.Getenv("ALPHA_VANTAGE_API_KEY")),
		FREDAPIKey:         strings.TrimSpace(os.Getenv("FRED_API_KEY")),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     os.Getenv("TELEGRAM_CHAT_ID"),
		AdminAPIKey:        strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.AlphaVantageAPIKey == "" {
		log.Println("Warning: ALPHA_VANTAGE_API_KEY not set, primary provider will fall through to backups")
	}
	if cfg.FREDAPIKey == "" {
		log.Println("Warning: FRED_API_KEY not set, macro series will use mock data")
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, alerting disabled")
	}
	if cfg.AdminAPIKey == "" {
		log.Println("Warning: ADMIN_API_KEY not set, admin endpoints are unauthenticated")
	}

	cfg.Port = 8080
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Port = n
		}
	}

	cfg.SchedulerEnabled = true
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED")); v != "" {
		cfg.SchedulerEnabled = strings.EqualFold(v, "true")
	}

	cfg.EvalTickSecs = 60
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_EVAL_TICK_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalTickSecs = n
		}
	}

	cfg.IntradayEveryMins = 15
	if v := strings.TrimSpace(os.Getenv("INTRADAY_EVERY_MINS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IntradayEveryMins = n
		}
	}

	return cfg
}
