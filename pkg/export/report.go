package export

import "fmt"

// Table is one titled block of rows in a report.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Report is an ordered set of tables rendered into a single document.
type Report struct {
	Title    string
	Subtitle string
	Tables   []Table
}

// Renderer turns a report into file bytes.
type Renderer interface {
	Render(Report) ([]byte, error)
	ContentType() string
	Extension() string
}

func (r Report) validate() error {
	if len(r.Tables) == 0 {
		return fmt.Errorf("report has no tables")
	}
	for i, t := range r.Tables {
		if len(t.Headers) == 0 {
			return fmt.Errorf("table %d requires at least one header", i)
		}
		for j, row := range t.Rows {
			if len(row) != len(t.Headers) {
				return fmt.Errorf("table %d row %d has %d cells, want %d", i, j, len(row), len(t.Headers))
			}
		}
	}
	return nil
}
