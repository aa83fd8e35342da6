package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
)

type analyticsServiceMock struct {
	scope  models.AnalyticsScope
	months int
	hit    bool
}

func (m *analyticsServiceMock) Requests(ctx context.Context, actor models.Actor, scope models.AnalyticsScope, months int) (*models.RequestAnalytics, bool, error) {
	m.scope = scope
	m.months = months
	return &models.RequestAnalytics{
		Scope:    models.ScopeAll,
		ByType:   []models.TypeBucket{},
		ByStatus: []models.StatusBucket{},
		ByBlock:  []models.BlockBucket{},
		ByMonth:  []models.MonthBucket{},
	}, m.hit, nil
}

func TestAnalyticsHandlerRequests(t *testing.T) {
	mockSvc := &analyticsServiceMock{hit: true}
	h := NewAnalyticsHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/analytics/requests?scope=all&months=3", nil)
	withActor(c, "employee-1", models.RoleEmployee)

	h.Requests(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ScopeAll, mockSvc.scope)
	assert.Equal(t, 3, mockSvc.months)

	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{}, data["by_month"])
}

func TestAnalyticsHandlerRejectsBadMonths(t *testing.T) {
	h := NewAnalyticsHandler(&analyticsServiceMock{})
	c, w := newGinContext(http.MethodGet, "/analytics/requests?months=abc", nil)
	withActor(c, "student-1", models.RoleStudent)

	h.Requests(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
