package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-pulse/internal/alert"
	"market-pulse/internal/cache"
	"market-pulse/internal/config"
	"market-pulse/internal/db"
	"market-pulse/internal/handler"
	"market-pulse/internal/job"
	"market-pulse/internal/marketclock"
	"market-pulse/internal/orchestrator"
	"market-pulse/internal/provider"
	"market-pulse/internal/repository"
	"market-pulse/internal/sentiment"
	"market-pulse/internal/service"
	"market-pulse/internal/tracking"
	"market-pulse/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "market-pulse/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	startSchedulerFunc     = func(s *job.Scheduler, ctx context.Context) { go s.Start(ctx) }
	startTrackerFunc       = func(t *tracking.Tracker, ctx context.Context) { go t.Run(ctx) }
	startTelegramBotFunc   = alert.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Market Pulse API
// @version         1.0
// @description     Market indicator cache with provider fallback and a fear & greed index.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Repositories and migrations
	cacheRepo := repository.NewCacheRepository(db.Pool, tracer)
	tracker := tracking.NewTracker(db.Pool, tracer)
	if db.Pool != nil {
		if err := cacheRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if err := tracker.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run usage migrations: %v", err)
		}
	}
	startTrackerFunc(tracker, ctx)

	// Provider adapters and fallback chains
	alphaVantage := provider.NewAlphaVantageProvider(cfg.AlphaVantageAPIKey, tracer, tracker)
	yahoo := provider.NewYahooProvider(tracer, tracker)
	fred := provider.NewFREDProvider(cfg.FREDAPIKey, tracer, tracker)
	mock := provider.NewMockProvider()
	chains := orchestrator.New(tracer, alphaVantage, yahoo, fred, mock)

	// Sentiment calculator and read-through service
	calculator := sentiment.NewCalculator(tracer, chains)
	marketData := service.NewMarketDataService(tracer, chains, calculator, cacheRepo, cache.Client, nil)

	// Alerting (optional) and scheduler
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	os.Setenv("TELEGRAM_CHAT_ID", cfg.TelegramChatID)
	notifier := startTelegramBotFunc(marketData)

	scheduler := job.NewScheduler(tracer, marketData, cacheRepo, alertSink(notifier), marketclock.SystemClock{})
	scheduler.SetIntervals(
		time.Duration(cfg.EvalTickSecs)*time.Second,
		time.Duration(cfg.IntradayEveryMins)*time.Minute,
	)
	if cfg.SchedulerEnabled {
		startSchedulerFunc(scheduler, ctx)
	} else {
		log.Println("scheduler disabled by configuration")
	}

	// Router and routes
	h := handler.New(tracer, marketData, scheduler, cfg.AdminAPIKey)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("market-pulse"))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

// alertSink avoids handing the scheduler a typed-nil interface when the
// bot is disabled.
func alertSink(n *alert.TelegramNotifier) job.AlertSink {
	if n == nil {
		return nil
	}
	return n
}
