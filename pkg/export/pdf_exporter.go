package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfRowHeight    = 7.0
	pdfHeaderHeight = 8.0
	pdfBottomMargin = 15.0
)

// PDFExporter renders documents into a paginated landscape table.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out the title block, filter summary and table. The header row
// is repeated on every page and rows alternate shading. Text is set in the
// core fonts, so it is encoded as cp1252; runes outside it print as '.'.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if err := doc.Table.validate("pdf"); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	pageWidth, pageHeight := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right
	widths := columnWidths(doc, usable)

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	}
	if doc.GeneratedAt != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, tr("Generated on: "+doc.GeneratedAt), "", 1, "R", false, 0, "")
	}
	if len(doc.Filters) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Filters:", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, f := range doc.Filters {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s: %s", f.Label, f.Value)), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(3)

	drawHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(240, 240, 240)
		for i, header := range doc.Table.Headers {
			pdf.CellFormat(widths[i], pdfHeaderHeight, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	drawHeader()

	limit := pageHeight - pdfBottomMargin
	for n, row := range doc.Table.Rows {
		if pdf.GetY()+pdfRowHeight > limit {
			pdf.AddPage()
			drawHeader()
		}
		fill := n%2 == 1
		pdf.SetFillColor(249, 249, 249)
		for i, value := range doc.Table.record(row) {
			text := fitText(pdf, tr(value), widths[i]-2)
			pdf.CellFormat(widths[i], pdfRowHeight, text, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if doc.Footer != "" {
		if pdf.GetY()+pdfRowHeight+3 > limit {
			pdf.AddPage()
		}
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, pdfRowHeight, tr(doc.Footer), "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(doc Document, usable float64) []float64 {
	n := len(doc.Table.Headers)
	widths := make([]float64, n)
	if len(doc.Widths) != n {
		for i := range widths {
			widths[i] = usable / float64(n)
		}
		return widths
	}
	var total float64
	for _, w := range doc.Widths {
		total += w
	}
	for i, w := range doc.Widths {
		widths[i] = usable * w / total
	}
	return widths
}

// fitText truncates cp1252-encoded text with an ellipsis so it stays inside
// one cell. The encoding is single-byte, so widths and cuts work per byte.
func fitText(pdf *gofpdf.Fpdf, encoded string, width float64) string {
	if pdf.GetStringWidth(encoded) <= width {
		return encoded
	}
	for n := len(encoded) - 1; n > 0; n-- {
		candidate := encoded[:n] + "..."
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}
