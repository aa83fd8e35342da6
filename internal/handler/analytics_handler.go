package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	"github.com/noah-isme/maintenance-portal-api/pkg/response"
)

type analyticsService interface {
	Requests(ctx context.Context, actor models.Actor, scope models.AnalyticsScope, months int) (*models.RequestAnalytics, bool, error)
}

// AnalyticsHandler serves request analytics.
type AnalyticsHandler struct {
	service analyticsService
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(svc analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// Requests godoc
// @Summary Request analytics
// @Description Counts by work type, status, block and month. Students always get their own requests.
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param scope query string false "mine or all"
// @Param months query int false "Month window (1-24)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /analytics/requests [get]
func (h *AnalyticsHandler) Requests(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	months, err := intQuery(c, "months")
	if err != nil {
		response.Error(c, err)
		return
	}
	scope := models.AnalyticsScope(strings.ToLower(strings.TrimSpace(c.Query("scope"))))

	result, hit, err := h.service.Requests(c.Request.Context(), actor, scope, months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"cache_hit": hit})
}
