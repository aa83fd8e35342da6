package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
	"github.com/noah-isme/maintenance-portal-api/pkg/export"
	"github.com/noah-isme/maintenance-portal-api/pkg/logger"
)

const (
	reportDateLayout   = "02 Jan 2006 15:04"
	reportFilterLayout = "02 Jan 2006"
)

// tabularColumns is the fixed column order of spreadsheet and CSV reports.
var tabularColumns = []string{
	"Request #", "Reg No", "Name", "Block", "Room", "Work Type", "Category",
	"Description", "Status", "Comments", "Created", "Updated", "Handled By",
}

var (
	pdfColumns = []string{"Request #", "Name (Reg No)", "Block/Room", "Type", "Status", "Created", "Comments"}
	pdfWidths  = []float64{1.1, 2, 1.1, 1, 1, 1.4, 3}
)

type reportStore interface {
	ListForReport(ctx context.Context, filter models.RequestFilter) ([]models.MaintenanceRequest, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ReportConfig tunes rendered reports.
type ReportConfig struct {
	Title    string
	Location *time.Location
}

// ReportService renders filtered request listings into downloadable documents.
type ReportService struct {
	store   reportStore
	xlsx    datasetRenderer
	csv     datasetRenderer
	pdf     documentRenderer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ReportConfig
	now     func() time.Time
}

// NewReportService constructs a ReportService with the default renderers.
func NewReportService(store reportStore, metrics *MetricsService, logger *zap.Logger, cfg ReportConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Title == "" {
		cfg.Title = "Maintenance Requests Report"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ReportService{
		store:   store,
		xlsx:    export.NewXLSXExporter("Requests"),
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate renders every request matching filter. The document is complete in
// memory before it is returned; a filter matching nothing yields NO_DATA.
func (s *ReportService) Generate(ctx context.Context, actor models.Actor, filter models.RequestFilter, format models.ReportFormat) (*models.ReportDocument, error) {
	if actor.Role != models.RoleEmployee {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only employees can export reports")
	}
	if format == "" {
		format = models.ReportFormatXLSX
	}
	if !format.Valid() {
		return nil, invalidField("format", "oneof=xlsx pdf csv", "unsupported report format")
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	filter.RequesterID = ""

	started := time.Now()
	items, err := s.store.ListForReport(ctx, filter)
	s.metrics.ObserveDBQuery("report_rows", time.Since(started))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requests")
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoData, "no requests match the selected filters")
	}

	now := s.now()
	var body []byte
	switch format {
	case models.ReportFormatXLSX:
		body, err = s.xlsx.Render(s.tabular(items))
	case models.ReportFormatCSV:
		body, err = s.csv.Render(s.tabular(items))
	case models.ReportFormatPDF:
		body, err = s.pdf.Render(s.document(items, filter, now))
	}
	if err != nil {
		logger.WithContext(ctx, s.logger).Error("render report", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	s.metrics.ReportGenerated(format)
	logger.WithContext(ctx, s.logger).Info("report generated", zap.String("format", string(format)), zap.Int("rows", len(items)), zap.Int("bytes", len(body)))

	return &models.ReportDocument{
		Filename:    fmt.Sprintf("maintenance_requests_report_%s.%s", now.UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(items),
	}, nil
}

func (s *ReportService) tabular(items []models.MaintenanceRequest) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Request #":   item.RequestNumber,
			"Reg No":      item.RegNo,
			"Name":        item.Name,
			"Block":       item.Block,
			"Room":        item.RoomNumber,
			"Work Type":   string(item.WorkType),
			"Category":    string(item.RequestCategory),
			"Description": item.Description,
			"Status":      string(item.Status),
			"Comments":    deref(item.ResponseComments),
			"Created":     s.formatTime(item.CreatedAt),
			"Updated":     s.formatTime(item.UpdatedAt),
			"Handled By":  deref(item.HandledByName),
		})
	}
	return export.Dataset{Headers: tabularColumns, Rows: rows}
}

func (s *ReportService) document(items []models.MaintenanceRequest, filter models.RequestFilter, now time.Time) export.Document {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Request #":     item.RequestNumber,
			"Name (Reg No)": fmt.Sprintf("%s (%s)", item.Name, item.RegNo),
			"Block/Room":    item.Block + "/" + item.RoomNumber,
			"Type":          string(item.WorkType),
			"Status":        string(item.Status),
			"Created":       s.formatTime(item.CreatedAt),
			"Comments":      deref(item.ResponseComments),
		})
	}
	return export.Document{
		Title:       s.cfg.Title,
		GeneratedAt: s.formatTime(now),
		Filters:     s.filterFields(filter),
		Table:       export.Dataset{Headers: pdfColumns, Rows: rows},
		Widths:      pdfWidths,
		Footer:      fmt.Sprintf("Total Requests: %d", len(items)),
	}
}

func (s *ReportService) filterFields(filter models.RequestFilter) []export.Field {
	var fields []export.Field
	if filter.Status != "" {
		fields = append(fields, export.Field{Label: "Status", Value: string(filter.Status)})
	}
	if filter.WorkType != "" {
		fields = append(fields, export.Field{Label: "Work Type", Value: string(filter.WorkType)})
	}
	if filter.Block != "" {
		fields = append(fields, export.Field{Label: "Block", Value: filter.Block})
	}
	if filter.From != nil {
		fields = append(fields, export.Field{Label: "From", Value: filter.From.In(s.cfg.Location).Format(reportFilterLayout)})
	}
	if filter.To != nil {
		// To is the exclusive start of the day after the last included day.
		last := filter.To.Add(-time.Nanosecond)
		fields = append(fields, export.Field{Label: "To", Value: last.In(s.cfg.Location).Format(reportFilterLayout)})
	}
	return fields
}

func (s *ReportService) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(s.cfg.Location).Format(reportDateLayout)
}
