package main

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// renderTable aligns rows by display width. The first row is the header and
// is followed by a dash separator.
func renderTable(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	colCount := 0
	for _, row := range rows {
		colCount = max(colCount, len(row))
	}
	widths := make([]int, colCount)
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, 0, len(rows)+1)
	for r, row := range rows {
		var sb strings.Builder
		for i := range colCount {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))

		if r == 0 {
			seps := make([]string, colCount)
			for i, w := range widths {
				seps[i] = strings.Repeat("-", w)
			}
			lines = append(lines, strings.Join(seps, "  "))
		}
	}
	return lines
}
