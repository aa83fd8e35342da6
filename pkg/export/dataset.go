package export

import "fmt"

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Field is a labelled value printed above a report table.
type Field struct {
	Label string
	Value string
}

// Document wraps a dataset with the presentation details of a printed report.
type Document struct {
	Title       string
	GeneratedAt string
	Filters     []Field
	Table       Dataset
	// Widths are relative column weights; empty means equal widths.
	Widths []float64
	Footer string
}

func (d Dataset) validate(kind string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", kind)
	}
	return nil
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}
