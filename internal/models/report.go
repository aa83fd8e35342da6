package models

// ReportFormat is the document type produced by the report exporter.
type ReportFormat string

const (
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatCSV  ReportFormat = "csv"
)

// Valid reports whether the format is supported.
func (f ReportFormat) Valid() bool {
	switch f {
	case ReportFormatXLSX, ReportFormatPDF, ReportFormatCSV:
		return true
	}
	return false
}

// ContentType is the MIME type of documents in this format.
func (f ReportFormat) ContentType() string {
	switch f {
	case ReportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ReportFormatPDF:
		return "application/pdf"
	case ReportFormatCSV:
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}

// ReportDocument is a fully rendered report ready to be sent.
type ReportDocument struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}
