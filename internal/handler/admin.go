package handler

import (
	"net/http"

	"market-pulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ForceRefresh godoc
// @Summary      Force a cache refresh
// @Description  Runs the full indicator refresh cycle immediately and returns its summary
// @Tags         admin
// @Produce      json
// @Security     ApiKeyAuth
// @Param        session  query  string  false  "Session to tag the run with (market_open, market_close, intraday, after_hours)"
// @Success      200  {object}  domain.UpdateSummary
// @Failure      400  {object}  map[string]string
// @Router       /api/admin/refresh [post]
func (h *Handler) ForceRefresh(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.force-refresh")
	defer span.End()

	session := domain.MarketSession(c.Query("session"))
	if session != "" && !session.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session: " + string(session)})
		return
	}
	span.SetAttributes(attribute.String("session", string(session)))

	summary := h.refresher.ForceRefresh(ctx, session)
	c.JSON(http.StatusOK, summary)
}
