package report

import "strings"

// RenderTable renders a pipe-delimited markdown table: header line, one "---" cell per
// header, then the rows. Cell content is not escaped. Zero headers still produce the
// two lines "|  |".
func RenderTable(headers []string, rows [][]string) string {
	separators := make([]string, len(headers))
	for i := range separators {
		separators[i] = "---"
	}

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, renderLine(headers), renderLine(separators))
	for _, row := range rows {
		lines = append(lines, renderLine(row))
	}
	return strings.Join(lines, "\n")
}

// RenderRows maps each item to a row and renders the table.
func RenderRows[T any](headers []string, items []T, row func(T) []string) string {
	rows := make([][]string, len(items))
	for i, item := range items {
		rows[i] = row(item)
	}
	return RenderTable(headers, rows)
}

func renderLine(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}
