package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
)

type reportServiceMock struct {
	format models.ReportFormat
	filter models.RequestFilter
	doc    *models.ReportDocument
	err    error
}

func (m *reportServiceMock) Generate(ctx context.Context, actor models.Actor, filter models.RequestFilter, format models.ReportFormat) (*models.ReportDocument, error) {
	m.format = format
	m.filter = filter
	return m.doc, m.err
}

func TestReportHandlerExportWritesAttachment(t *testing.T) {
	body := []byte("PK\x03\x04xlsx")
	mockSvc := &reportServiceMock{doc: &models.ReportDocument{
		Filename:    "maintenance_requests_report_20240501_080000.xlsx",
		ContentType: models.ReportFormatXLSX.ContentType(),
		Body:        body,
		Rows:        2,
	}}
	h := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/reports/requests?format=XLSX&work_type=plumbing", nil)
	withActor(c, "employee-1", models.RoleEmployee)

	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReportFormatXLSX, mockSvc.format)
	assert.Equal(t, models.WorkTypePlumbing, mockSvc.filter.WorkType)
	assert.Equal(t, models.ReportFormatXLSX.ContentType(), w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="maintenance_requests_report_20240501_080000.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, body, w.Body.Bytes())
}

func TestReportHandlerExportNoData(t *testing.T) {
	mockSvc := &reportServiceMock{err: appErrors.Clone(appErrors.ErrNoData, "no requests match the selected filters")}
	h := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/reports/requests?format=pdf&block=Z", nil)
	withActor(c, "employee-1", models.RoleEmployee)

	h.Export(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "NO_DATA", decodeEnvelope(t, w)["error"].(map[string]interface{})["code"])
}
