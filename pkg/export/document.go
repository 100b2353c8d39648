package export

import "fmt"

// Column is one table column. Weight sets its share of the printable width
// in PDF output and defaults to 1.
type Column struct {
	Header string
	Weight float64
}

// Section is a titled block of rows, such as one semester of a transcript.
type Section struct {
	Heading string
	Rows    [][]string
	Footer  string
}

// Document is a sectioned table shared by the CSV and PDF renderers.
type Document struct {
	Title    string
	Subtitle []string
	Columns  []Column
	Sections []Section
	Summary  []string
}

func (d Document) validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("document requires at least one column")
	}
	for _, s := range d.Sections {
		for i, row := range s.Rows {
			if len(row) != len(d.Columns) {
				return fmt.Errorf("section %q row %d has %d cells, want %d", s.Heading, i, len(row), len(d.Columns))
			}
		}
	}
	return nil
}

func (d Document) headers() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Header
	}
	return out
}
