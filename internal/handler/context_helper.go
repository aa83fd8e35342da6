package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-portal-api/internal/middleware"
	"github.com/noah-isme/maintenance-portal-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
	"github.com/noah-isme/maintenance-portal-api/pkg/response"
)

// actorFromContext writes an unauthorized response when no caller is present.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// parseRequestFilter reads status, work_type, block, from, to and paging
// query parameters. from and to are inclusive calendar days.
func parseRequestFilter(c *gin.Context, loc *time.Location) (models.RequestFilter, error) {
	filter, err := models.NewRequestFilter(c.Query("status"), c.Query("work_type"), c.Query("block"), c.Query("from"), c.Query("to"), loc)
	if err != nil {
		var dateErr *models.FilterDateError
		if errors.As(err, &dateErr) {
			return filter, queryError(dateErr.Field, "datetime="+models.FilterDateLayout)
		}
		return filter, err
	}
	if filter.Page, err = intQuery(c, "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = intQuery(c, "page_size"); err != nil {
		return filter, err
	}
	return filter, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, queryError(name, "numeric")
	}
	return n, nil
}

func queryError(field, rule string) error {
	return appErrors.WithDetails(appErrors.ErrValidation, "invalid query parameter", map[string]string{field: rule})
}
