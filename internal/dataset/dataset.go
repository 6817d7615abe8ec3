// Package dataset holds the in-memory tabular model: the master order file
// filtered down to one customer for the lifetime of a chat session.
package dataset

import (
	"fmt"
	"html"
	"strings"
)

// Dataset is an ordered sequence of rows with named columns. Row order is
// whatever produced it; indexing is implicitly 0-based.
type Dataset struct {
	Columns []string
	Rows    [][]any
}

func (d Dataset) RowCount() int {
	return len(d.Rows)
}

func (d Dataset) Empty() bool {
	return len(d.Rows) == 0
}

// WithoutColumns returns a copy with the named columns removed. Unknown
// names are ignored.
func (d Dataset) WithoutColumns(names ...string) Dataset {
	drop := map[string]bool{}
	for _, name := range names {
		drop[name] = true
	}

	keep := make([]int, 0, len(d.Columns))
	columns := make([]string, 0, len(d.Columns))
	for i, column := range d.Columns {
		if drop[column] {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, column)
	}
	if len(keep) == len(d.Columns) {
		return d
	}

	rows := make([][]any, 0, len(d.Rows))
	for _, row := range d.Rows {
		filtered := make([]any, 0, len(keep))
		for _, i := range keep {
			if i < len(row) {
				filtered = append(filtered, row[i])
			}
		}
		rows = append(rows, filtered)
	}
	return Dataset{Columns: columns, Rows: rows}
}

// RenderText produces the plain-text table embedded in summarization prompts.
func (d Dataset) RenderText() string {
	var out strings.Builder
	out.WriteString(strings.Join(d.Columns, " | "))
	for _, row := range d.Rows {
		out.WriteString("\n")
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = formatCell(value)
		}
		out.WriteString(strings.Join(cells, " | "))
	}
	return out.String()
}

// RenderHTML produces the table markup shown in assistant messages. No index
// column is emitted.
func (d Dataset) RenderHTML() (string, error) {
	if len(d.Columns) == 0 {
		return "", fmt.Errorf("dataset has no columns")
	}
	var out strings.Builder
	out.WriteString("<table><thead><tr>")
	for _, column := range d.Columns {
		out.WriteString("<th>")
		out.WriteString(html.EscapeString(column))
		out.WriteString("</th>")
	}
	out.WriteString("</tr></thead><tbody>")
	for _, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return "", fmt.Errorf("row width %d does not match %d columns", len(row), len(d.Columns))
		}
		out.WriteString("<tr>")
		for _, value := range row {
			out.WriteString("<td>")
			out.WriteString(html.EscapeString(formatCell(value)))
			out.WriteString("</td>")
		}
		out.WriteString("</tr>")
	}
	out.WriteString("</tbody></table>")
	return out.String(), nil
}

func formatCell(value any) string {
	if value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
