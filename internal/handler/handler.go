package handler

import (
	"context"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// MarketDataReader is the read surface of the market-data service.
type MarketDataReader interface {
	GetIndicator(ctx context.Context, indicator domain.IndicatorType) (*domain.MarketIndicator, error)
	GetFearGreed(ctx context.Context) (*domain.FearGreedIndex, error)
	Stats(ctx context.Context) (*domain.CacheStats, error)
}

// Refresher triggers an on-demand refresh cycle.
type Refresher interface {
	ForceRefresh(ctx context.Context, session domain.MarketSession) *domain.UpdateSummary
}

type Handler struct {
	tracer    trace.Tracer
	service   MarketDataReader
	refresher Refresher
	adminKey  string
}

func New(tracer trace.Tracer, service MarketDataReader, refresher Refresher, adminKey string) *Handler {
	return &Handler{
		tracer:    tracer,
		service:   service,
		refresher: refresher,
		adminKey:  adminKey,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/market/stats", h.GetStats)
	api.GET("/market/fear-greed", h.GetFearGreed)
	api.GET("/market/:indicator", h.GetIndicator)

	admin := api.Group("/admin", APIKeyAuth(h.adminKey))
	admin.POST("/refresh", h.ForceRefresh)
}
