package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const printableWidth = 190.0

// PDFExporter renders a Document as an A4 report with one table per section.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out doc and returns the PDF bytes.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	widths := columnWidths(doc.Columns)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetTitle(doc.Title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "", 10)
	for _, line := range doc.Subtitle {
		pdf.CellFormat(0, 6, tr(line), "", 1, "C", false, 0, "")
	}

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, c := range doc.Columns {
			pdf.CellFormat(widths[i], 7, tr(c.Header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	for _, s := range doc.Sections {
		pdf.Ln(4)
		if s.Heading != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 7, tr(s.Heading), "", 1, "L", false, 0, "")
		}
		header()
		pdf.SetFont("Arial", "", 9)
		for _, row := range s.Rows {
			for i, cell := range row {
				pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		if s.Footer != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 6, tr(s.Footer), "", 1, "R", false, 0, "")
		}
	}

	if len(doc.Summary) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		for _, line := range doc.Summary {
			pdf.CellFormat(0, 6, tr(line), "", 1, "", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(cols []Column) []float64 {
	total := 0.0
	for _, c := range cols {
		total += weight(c)
	}
	out := make([]float64, len(cols))
	for i, c := range cols {
		out[i] = printableWidth * weight(c) / total
	}
	return out
}

func weight(c Column) float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}
