package handler

import (
	"net/http"
	"strings"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetIndicator godoc
// @Summary      Get a market indicator
// @Description  Returns the current value of an indicator, served from cache when fresh
// @Tags         market
// @Produce      json
// @Param        indicator  path  string  true  "Indicator type (sp500, vix, sector_performance, treasury_yield)"
// @Success      200  {object}  domain.MarketIndicator
// @Failure      400  {object}  map[string]string
// @Router       /api/market/{indicator} [get]
func (h *Handler) GetIndicator(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-indicator")
	defer span.End()

	indicator := domain.IndicatorType(strings.ToLower(c.Param("indicator")))
	span.SetAttributes(attribute.String("indicator", string(indicator)))

	if !indicator.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":                "unsupported indicator: " + c.Param("indicator"),
			"supported_indicators": domain.SupportedIndicators,
		})
		return
	}
	if indicator == domain.IndicatorFearGreed {
		// The composite index has its own shape and endpoint.
		h.GetFearGreed(c)
		return
	}

	result, err := h.service.GetIndicator(ctx, indicator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFearGreed godoc
// @Summary      Get the fear & greed index
// @Description  Returns the composite sentiment index with its component scores
// @Tags         market
// @Produce      json
// @Success      200  {object}  domain.FearGreedIndex
// @Router       /api/market/fear-greed [get]
func (h *Handler) GetFearGreed(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-fear-greed")
	defer span.End()

	index, err := h.service.GetFearGreed(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, index)
}

// GetStats godoc
// @Summary      Cache statistics
// @Description  Returns cache entry counts and the process hit/miss counters
// @Tags         market
// @Produce      json
// @Success      200  {object}  domain.CacheStats
// @Router       /api/market/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-stats")
	defer span.End()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
