package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// sectionHeader names the leading CSV column carrying each row's section.
const sectionHeader = "Section"

// CSVExporter flattens a Document into one CSV table. Every row is prefixed
// with its section heading; footers and summary lines occupy their own rows.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for doc.
func (e *CSVExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	width := len(doc.Columns) + 1
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	write := func(record []string) error {
		if len(record) < width {
			padded := make([]string, width)
			copy(padded, record)
			record = padded
		}
		return w.Write(record)
	}

	if err := write(append([]string{sectionHeader}, doc.headers()...)); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range doc.Sections {
		for _, row := range s.Rows {
			if err := write(append([]string{s.Heading}, row...)); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
		if s.Footer != "" {
			if err := write([]string{s.Heading, s.Footer}); err != nil {
				return nil, fmt.Errorf("write csv footer: %w", err)
			}
		}
	}
	for _, line := range doc.Summary {
		if err := write([]string{line}); err != nil {
			return nil, fmt.Errorf("write csv summary: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
