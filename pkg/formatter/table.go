// File: pkg/formatter/table.go
package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

type Table struct {
	Headers      []string
	Rows         [][]string
	align        []Alignment
	columnWidths []int
}

// Creates a new table with the given headers
func NewTable(headers ...string) *Table {
	t := &Table{
		Headers:      headers,
		Rows:         [][]string{},
		align:        make([]Alignment, len(headers)),
		columnWidths: make([]int, len(headers)),
	}
	for i, h := range headers {
		t.columnWidths[i] = lipgloss.Width(h)
	}
	return t
}

// Right-aligns the given columns, used for counts and sizes
func (t *Table) AlignRight(columns ...int) *Table {
	for _, c := range columns {
		if c >= 0 && c < len(t.align) {
			t.align[c] = AlignRight
		}
	}
	return t
}

// Cells beyond the header count are dropped
func (t *Table) AddRow(cells ...string) {
	if len(cells) > len(t.Headers) {
		cells = cells[:len(t.Headers)]
	}
	for i, cell := range cells {
		if w := lipgloss.Width(cell); w > t.columnWidths[i] {
			t.columnWidths[i] = w
		}
	}
	t.Rows = append(t.Rows, cells)
}

// Returns the string representation of the table
func (t *Table) String() string {
	if len(t.Headers) == 0 {
		return ""
	}

	var sb strings.Builder

	t.writeBorder(&sb)
	sb.WriteString("\n")

	// Headers are always left-aligned
	sb.WriteString("| ")
	for i, h := range t.Headers {
		sb.WriteString(pad(h, t.columnWidths[i], AlignLeft))
		sb.WriteString(" | ")
	}
	sb.WriteString("\n")

	t.writeBorder(&sb)
	sb.WriteString("\n")

	for _, row := range t.Rows {
		sb.WriteString("| ")
		for i := range t.Headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			sb.WriteString(pad(cell, t.columnWidths[i], t.align[i]))
			sb.WriteString(" | ")
		}
		sb.WriteString("\n")
	}

	t.writeBorder(&sb)

	return sb.String()
}

// writeBorder writes a horizontal border to the string builder
func (t *Table) writeBorder(sb *strings.Builder) {
	sb.WriteString("+")
	for _, width := range t.columnWidths {
		sb.WriteString(strings.Repeat("-", width+2))
		sb.WriteString("+")
	}
}

func pad(s string, width int, align Alignment) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if align == AlignRight {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// Formats a section header with a title
func FormatHeaderSection(title string) string {
	var sb strings.Builder

	borderLine := strings.Repeat("=", lipgloss.Width(title)+30)

	sb.WriteString(borderLine)
	sb.WriteString("\n")
	sb.WriteString("  " + title + "  ")
	sb.WriteString("\n")
	sb.WriteString(borderLine)

	return sb.String()
}

// Formats a simple section title
func FormatSectionTitle(title string) string {
	return "-- " + title + " --"
}
