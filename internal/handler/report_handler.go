package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	"github.com/noah-isme/maintenance-portal-api/pkg/response"
)

type reportService interface {
	Generate(ctx context.Context, actor models.Actor, filter models.RequestFilter, format models.ReportFormat) (*models.ReportDocument, error)
}

// ReportHandler serves downloadable request reports.
type ReportHandler struct {
	service  reportService
	location *time.Location
}

// NewReportHandler constructs a report handler. Filter dates are read in location.
func NewReportHandler(svc reportService, location *time.Location) *ReportHandler {
	return &ReportHandler{service: svc, location: location}
}

// Export godoc
// @Summary Export requests report
// @Description Render matching requests as a spreadsheet, PDF or CSV download
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce application/pdf
// @Produce text/csv
// @Security BearerAuth
// @Param format query string false "xlsx, pdf or csv" default(xlsx)
// @Param status query string false "Status filter"
// @Param work_type query string false "Work type filter"
// @Param block query string false "Block filter"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/requests [get]
func (h *ReportHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter, err := parseRequestFilter(c, h.location)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := models.ReportFormat(strings.ToLower(strings.TrimSpace(c.Query("format"))))

	doc, err := h.service.Generate(c.Request.Context(), actor, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.ContentType, doc.Filename, doc.Body)
}
