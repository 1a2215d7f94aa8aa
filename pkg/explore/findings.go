package explore

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// sortField defines which column to sort by.
type sortField int

const (
	sortByDictionary sortField = iota
	sortByKeyword
	sortByMatches
	sortByBlobs
	sortFieldCount // sentinel
)

var sortFieldNames = [sortFieldCount]string{
	"Dictionary", "Keyword", "Matches", "Blobs",
}

// findingsPane is the top-right findings table.
type findingsPane struct {
	rows    []*findingRow // filtered rows
	allRows []*findingRow
	cursor  int
	offset  int
	width   int
	height  int
	focused bool
	sortBy  sortField
	sortAsc bool
}

func newFindingsPane(rows []*findingRow) findingsPane {
	fp := findingsPane{
		allRows: rows,
		rows:    rows,
		sortAsc: true,
	}
	fp.sort()
	return fp
}

func (fp *findingsPane) setFilteredRows(rows []*findingRow) {
	fp.rows = rows
	fp.sort()
	if fp.cursor >= len(fp.rows) {
		fp.cursor = max(0, len(fp.rows)-1)
	}
	fp.ensureVisible()
}

func (fp findingsPane) selectedFinding() *findingRow {
	if fp.cursor < 0 || fp.cursor >= len(fp.rows) {
		return nil
	}
	return fp.rows[fp.cursor]
}

func (fp findingsPane) Update(msg tea.Msg) (findingsPane, tea.Cmd) {
	if !fp.focused {
		return fp, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case keyMatches(msg, defaultKeys.Up):
			if fp.cursor > 0 {
				fp.cursor--
				fp.ensureVisible()
			}
		case keyMatches(msg, defaultKeys.Down):
			if fp.cursor < len(fp.rows)-1 {
				fp.cursor++
				fp.ensureVisible()
			}
		case keyMatches(msg, defaultKeys.Home):
			fp.cursor = 0
			fp.offset = 0
		case keyMatches(msg, defaultKeys.End):
			fp.cursor = max(0, len(fp.rows)-1)
			fp.ensureVisible()
		case keyMatches(msg, defaultKeys.PageDown):
			fp.cursor = max(0, min(fp.cursor+fp.visibleRows(), len(fp.rows)-1))
			fp.ensureVisible()
		case keyMatches(msg, defaultKeys.PageUp):
			fp.cursor = max(fp.cursor-fp.visibleRows(), 0)
			fp.ensureVisible()
		case keyMatches(msg, defaultKeys.SortNext):
			fp.sortBy = (fp.sortBy + 1) % sortFieldCount
			fp.sort()
		case keyMatches(msg, defaultKeys.SortReverse):
			fp.sortAsc = !fp.sortAsc
			fp.sort()
		}
	}

	return fp, nil
}

// sort orders rows by the sort column, breaking ties by keyword so the
// table is stable across reloads.
func (fp *findingsPane) sort() {
	var key func(a, b *findingRow) int
	switch fp.sortBy {
	case sortByDictionary:
		key = func(a, b *findingRow) int { return cmp.Compare(a.DictionaryName, b.DictionaryName) }
	case sortByKeyword:
		key = func(a, b *findingRow) int { return cmp.Compare(a.Keyword, b.Keyword) }
	case sortByMatches:
		key = func(a, b *findingRow) int { return cmp.Compare(a.MatchCount, b.MatchCount) }
	case sortByBlobs:
		key = func(a, b *findingRow) int { return cmp.Compare(a.BlobCount, b.BlobCount) }
	}
	slices.SortStableFunc(fp.rows, func(a, b *findingRow) int {
		c := key(a, b)
		if !fp.sortAsc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.Keyword, b.Keyword)
		}
		return c
	})
}

func (fp findingsPane) View() string {
	if fp.width <= 0 || fp.height <= 0 {
		return ""
	}

	contentWidth := fp.width - 4 // borders
	colMatches, colBlobs := 8, 6
	colDictionary := min(30, contentWidth/3)
	colKeyword := max(10, contentWidth-colDictionary-colMatches-colBlobs-4)

	sortIndicator := func(f sortField) string {
		if fp.sortBy != f {
			return ""
		}
		if fp.sortAsc {
			return " ^"
		}
		return " v"
	}

	var b strings.Builder
	header := fmt.Sprintf(" %-*s %-*s %*s %*s",
		colDictionary, "Dictionary"+sortIndicator(sortByDictionary),
		colKeyword, "Keyword"+sortIndicator(sortByKeyword),
		colMatches, "Matches"+sortIndicator(sortByMatches),
		colBlobs, "Blobs"+sortIndicator(sortByBlobs),
	)
	b.WriteString(headerRowStyle.Width(contentWidth).Render(truncateString(header, contentWidth)))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", contentWidth))
	b.WriteString("\n")

	visibleEnd := min(fp.offset+fp.visibleRows(), len(fp.rows))
	for i := fp.offset; i < visibleEnd; i++ {
		row := fp.rows[i]
		line := fmt.Sprintf(" %-*s %-*s %*d %*d",
			colDictionary, truncateString(row.DictionaryName, colDictionary),
			colKeyword, truncateString(printable(row.Keyword), colKeyword),
			colMatches, row.MatchCount,
			colBlobs, row.BlobCount,
		)
		if i == fp.cursor && fp.focused {
			line = selectedRowStyle.Width(contentWidth).Render(line)
		}

		b.WriteString(padRight(line, contentWidth))
		if i < visibleEnd-1 {
			b.WriteString("\n")
		}
	}

	for i := visibleEnd - fp.offset; i < fp.visibleRows(); i++ {
		b.WriteString(strings.Repeat(" ", contentWidth))
		if i < fp.visibleRows()-1 {
			b.WriteString("\n")
		}
	}

	title := titleStyle.Render(fmt.Sprintf(" Findings (%d/%d) [sort: %s] ", len(fp.rows), len(fp.allRows), sortFieldNames[fp.sortBy]))

	borderStyle := inactiveBorderStyle
	if fp.focused {
		borderStyle = activeBorderStyle
	}
	content := borderStyle.
		Width(fp.width - 2).
		Height(fp.height - 3).
		Render(b.String())

	return lipgloss.JoinVertical(lipgloss.Left, title, content)
}

func (fp findingsPane) visibleRows() int {
	return max(1, fp.height-6) // title + border + header + separator
}

func (fp *findingsPane) ensureVisible() {
	if fp.cursor < fp.offset {
		fp.offset = fp.cursor
	}
	if fp.cursor >= fp.offset+fp.visibleRows() {
		fp.offset = fp.cursor - fp.visibleRows() + 1
	}
}

func (fp *findingsPane) setSize(w, h int) {
	fp.width = w
	fp.height = h
}

// printable makes control characters in a keyword visible in one cell row.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r < ' ' || r == 0x7f {
			return '·'
		}
		return r
	}, s)
}
