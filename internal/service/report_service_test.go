package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
)

func seededReportStore(t *testing.T) *memRequestStore {
	t.Helper()
	store := newMemRequestStore()
	created := time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC)
	handler := "Ravi"
	comments := "scheduled"
	rows := []models.MaintenanceRequest{
		{RequesterID: "student-1", RegNo: "S1", Name: "Asha", Block: "A", RoomNumber: "101", WorkType: models.WorkTypeElectrical, RequestCategory: models.CategoryRequisition, Description: "fan", Status: models.StatusApproved, ResponseComments: &comments, HandledByName: &handler, CreatedAt: created},
		{RequesterID: "student-2", RegNo: "S2", Name: "Bala", Block: "B", RoomNumber: "202", WorkType: models.WorkTypePlumbing, RequestCategory: models.CategoryFeedback, Description: "tap", Status: models.StatusPending, CreatedAt: created.Add(time.Hour)},
	}
	for i := range rows {
		require.NoError(t, store.Create(context.Background(), &rows[i]))
	}
	return store
}

func newTestReportService(store reportStore) *ReportService {
	svc := NewReportService(store, nil, zap.NewNop(), ReportConfig{})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestReportXLSXRoundTrip(t *testing.T) {
	svc := newTestReportService(seededReportStore(t))

	doc, err := svc.Generate(context.Background(), employee, models.RequestFilter{}, models.ReportFormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "maintenance_requests_report_20240501_080000.xlsx", doc.Filename)
	assert.Equal(t, models.ReportFormatXLSX.ContentType(), doc.ContentType)
	assert.Equal(t, 2, doc.Rows)

	book, err := excelize.OpenReader(bytes.NewReader(doc.Body))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Requests")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, tabularColumns, rows[0])

	byNumber := map[string][]string{}
	for _, row := range rows[1:] {
		byNumber[row[0]] = row
	}
	first := byNumber["REQ-0001"]
	require.NotNil(t, first)
	assert.Equal(t, []string{"REQ-0001", "S1", "Asha", "A", "101", "electrical", "requisition", "fan", "approved", "scheduled", "02 Apr 2024 09:30", "02 Apr 2024 09:30", "Ravi"}, first)
}

func TestReportCSVUsesTimezone(t *testing.T) {
	store := seededReportStore(t)
	loc := time.FixedZone("IST", 5*3600+1800)
	svc := NewReportService(store, nil, zap.NewNop(), ReportConfig{Location: loc})

	doc, err := svc.Generate(context.Background(), employee, models.RequestFilter{Status: models.StatusPending}, models.ReportFormatCSV)
	require.NoError(t, err)
	body := string(doc.Body)
	assert.True(t, strings.HasPrefix(body, strings.Join(tabularColumns, ",")+"\n"))
	assert.Contains(t, body, "REQ-0002,S2,Bala,B,202,plumbing,feedback,tap,pending,,02 Apr 2024 16:00")
	assert.NotContains(t, body, "REQ-0001")
}

func TestReportPDFContainsFiltersAndTotal(t *testing.T) {
	svc := newTestReportService(seededReportStore(t))
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)

	doc, err := svc.Generate(context.Background(), employee, models.RequestFilter{Block: "A", From: &from, To: &to}, models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	require.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))

	reader, err := pdf.NewReader(bytes.NewReader(doc.Body), int64(len(doc.Body)))
	require.NoError(t, err)
	plain, err := reader.GetPlainText()
	require.NoError(t, err)
	var text bytes.Buffer
	_, err = text.ReadFrom(plain)
	require.NoError(t, err)

	content := text.String()
	assert.Contains(t, content, "Maintenance Requests Report")
	assert.Contains(t, content, "Block: A")
	assert.Contains(t, content, "To: 02 Apr 2024")
	assert.Contains(t, content, "Total Requests: 1")
}

func TestReportErrors(t *testing.T) {
	svc := newTestReportService(seededReportStore(t))
	ctx := context.Background()

	_, err := svc.Generate(ctx, student, models.RequestFilter{}, models.ReportFormatXLSX)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Generate(ctx, employee, models.RequestFilter{}, "docx")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Generate(ctx, employee, models.RequestFilter{WorkType: "roofing"}, models.ReportFormatXLSX)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Generate(ctx, employee, models.RequestFilter{From: &from, To: &to}, models.ReportFormatPDF)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Generate(ctx, employee, models.RequestFilter{Block: "Z"}, models.ReportFormatPDF)
	require.ErrorIs(t, err, appErrors.ErrNoData)
}
