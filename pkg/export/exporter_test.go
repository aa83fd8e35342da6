package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	pdf "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset(rows int) Dataset {
	data := Dataset{Headers: []string{"Request #", "Name", "Status"}}
	for i := 1; i <= rows; i++ {
		data.Rows = append(data.Rows, map[string]string{
			"Request #": fmt.Sprintf("REQ-%04d", i),
			"Name":      fmt.Sprintf("Student %d", i),
			"Status":    "pending",
		})
	}
	return data
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(2))
	require.NoError(t, err)
	assert.Equal(t, "Request #,Name,Status\nREQ-0001,Student 1,pending\nREQ-0002,Student 2,pending\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestCSVExporterNeutralizesFormulasAndAddsBOM(t *testing.T) {
	data := Dataset{
		Headers: []string{"Description", "Room"},
		Rows: []map[string]string{
			{"Description": "=HYPERLINK(\"http://x\")", "Room": "-1"},
			{"Description": "leaking tap", "Room": "101"},
		},
	}

	out, err := NewCSVExporter(WithBOM()).Render(data)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))
	body := string(out[len(utf8BOM):])
	assert.Contains(t, body, `"'=HYPERLINK(""http://x"")",'-1`)
	assert.Contains(t, body, "leaking tap,101")
}

func TestXLSXExporterRoundTrip(t *testing.T) {
	exporter := NewXLSXExporter("Requests")
	out, err := exporter.Render(sampleDataset(3))
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer book.Close() //nolint:errcheck

	rows, err := book.GetRows("Requests")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Request #", "Name", "Status"}, rows[0])
	assert.Equal(t, []string{"REQ-0003", "Student 3", "pending"}, rows[3])
}

func extractPDFText(t *testing.T, data []byte) (string, int) {
	t.Helper()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var builder strings.Builder
	for page := 1; page <= doc.NumPage(); page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		require.NoError(t, err)
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), doc.NumPage()
}

func TestPDFExporterLayout(t *testing.T) {
	out, err := NewPDFExporter().Render(Document{
		Title:       "Maintenance Requests Report",
		GeneratedAt: "05 Mar 2024 10:00",
		Filters:     []Field{{Label: "Status", Value: "approved"}},
		Table:       sampleDataset(2),
		Footer:      "Total Requests: 2",
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	text, pages := extractPDFText(t, out)
	assert.Equal(t, 1, pages)
	assert.Contains(t, text, "Maintenance Requests Report")
	assert.Contains(t, text, "Status: approved")
	assert.Contains(t, text, "REQ-0002")
	assert.Contains(t, text, "Total Requests: 2")
}

func TestPDFExporterPaginates(t *testing.T) {
	out, err := NewPDFExporter().Render(Document{Title: "Paged", Table: sampleDataset(80)})
	require.NoError(t, err)

	text, pages := extractPDFText(t, out)
	assert.Greater(t, pages, 1)
	assert.Contains(t, text, "REQ-0080")
	assert.GreaterOrEqual(t, strings.Count(text, "Request #"), pages)
}

func TestFitTextMeasuresEncodedText(t *testing.T) {
	doc := gofpdf.New("L", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Arial", "", 8)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	encoded := tr(strings.Repeat("é", 80))
	require.Len(t, encoded, 80)
	out := fitText(doc, encoded, 20)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, doc.GetStringWidth(out), 20.0)
	assert.Equal(t, "\xe9", out[:1])

	assert.Equal(t, "Jos\xe9 ..", tr("José Жи"))
	assert.Equal(t, "short", fitText(doc, tr("short"), 20))
}

func TestPDFExporterRendersLatin1Names(t *testing.T) {
	data := Dataset{
		Headers: []string{"Request #", "Name", "Status"},
		Rows:    []map[string]string{{"Request #": "REQ-0001", "Name": "Zoë Müller", "Status": "pending"}},
	}
	out, err := NewPDFExporter().Render(Document{Title: "Accents", Table: data})
	require.NoError(t, err)

	text, _ := extractPDFText(t, out)
	assert.Contains(t, text, "REQ-0001")
	assert.Contains(t, text, "Zo")
}

func TestColumnWidthsHonourWeights(t *testing.T) {
	doc := Document{Table: sampleDataset(0), Widths: []float64{1, 2, 1}}
	widths := columnWidths(doc, 100)
	assert.InDelta(t, 25, widths[0], 0.001)
	assert.InDelta(t, 50, widths[1], 0.001)

	doc.Widths = nil
	widths = columnWidths(doc, 90)
	assert.InDelta(t, 30, widths[2], 0.001)
}
