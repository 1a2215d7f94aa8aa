package explore

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// detailsPane shows match details for the selected finding.
type detailsPane struct {
	finding     *findingRow
	matchCursor int
	width       int
	height      int
	offset      int // scroll offset for content
	focused     bool
}

func (dp *detailsPane) setFinding(f *findingRow) {
	dp.finding = f
	dp.matchCursor = 0
	dp.offset = 0
}

func (dp detailsPane) selectedMatch() *matchRow {
	if dp.finding == nil || dp.matchCursor < 0 || dp.matchCursor >= len(dp.finding.Matches) {
		return nil
	}
	return dp.finding.Matches[dp.matchCursor]
}

func (dp detailsPane) Update(msg tea.Msg) (detailsPane, tea.Cmd) {
	if !dp.focused {
		return dp, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case keyMatches(msg, defaultKeys.Up):
			if dp.offset > 0 {
				dp.offset--
			}
		case keyMatches(msg, defaultKeys.Down):
			dp.offset++
		case keyMatches(msg, defaultKeys.Left):
			if dp.matchCursor > 0 {
				dp.matchCursor--
				dp.offset = 0
			}
		case keyMatches(msg, defaultKeys.Right):
			if dp.finding != nil && dp.matchCursor < len(dp.finding.Matches)-1 {
				dp.matchCursor++
				dp.offset = 0
			}
		case keyMatches(msg, defaultKeys.Home):
			dp.offset = 0
		case keyMatches(msg, defaultKeys.PageDown):
			dp.offset += dp.visibleRows()
		case keyMatches(msg, defaultKeys.PageUp):
			dp.offset = max(0, dp.offset-dp.visibleRows())
		}
	}

	return dp, nil
}

// lines renders the pane content before scrolling.
func (dp detailsPane) lines(contentWidth int) []string {
	f := dp.finding
	if f == nil {
		return []string{"  No finding selected"}
	}

	lines := []string{
		field("Dictionary:", fmt.Sprintf("%s (%s)", f.DictionaryName, f.DictionaryID)),
		fmt.Sprintf("  %s %s", fieldLabelStyle.Render("Keyword:"), snippetMatchStyle.Render(printable(f.Keyword))),
	}
	if len(f.Categories) > 0 {
		lines = append(lines, field("Categories:", strings.Join(f.Categories, ", ")))
	}
	lines = append(lines, field("Finding:", f.FindingID), "")

	if len(f.Matches) == 0 {
		return append(lines, "  No matches")
	}

	lines = append(lines,
		"  "+headerRowStyle.Render(fmt.Sprintf("Match %d/%d (h/l to navigate)", dp.matchCursor+1, len(f.Matches))),
		"  "+strings.Repeat("─", max(0, min(40, contentWidth-4))))
	if m := dp.selectedMatch(); m != nil {
		lines = append(lines, renderMatchDetails(m, contentWidth)...)
	}
	return lines
}

func (dp detailsPane) View() string {
	if dp.width <= 0 || dp.height <= 0 {
		return ""
	}

	contentWidth := dp.width - 4
	lines := dp.lines(contentWidth)

	offset := min(dp.offset, max(0, len(lines)-1))
	visible := lines[offset:]
	if len(visible) > dp.visibleRows() {
		visible = visible[:dp.visibleRows()]
	}

	var b strings.Builder
	for i, line := range visible {
		b.WriteString(padRight(truncateString(line, contentWidth), contentWidth))
		if i < len(visible)-1 {
			b.WriteString("\n")
		}
	}
	for i := len(visible); i < dp.visibleRows(); i++ {
		b.WriteString(strings.Repeat(" ", contentWidth))
		if i < dp.visibleRows()-1 {
			b.WriteString("\n")
		}
	}

	title := titleStyle.Render(" Details ")

	borderStyle := inactiveBorderStyle
	if dp.focused {
		borderStyle = activeBorderStyle
	}
	content := borderStyle.
		Width(dp.width - 2).
		Height(dp.height - 3).
		Render(b.String())

	return lipgloss.JoinVertical(lipgloss.Left, title, content)
}

func field(label, value string) string {
	return fmt.Sprintf("  %s %s", fieldLabelStyle.Render(label), fieldValueStyle.Render(value))
}

func renderMatchDetails(m *matchRow, maxWidth int) []string {
	var lines []string

	for _, prov := range m.Provenance {
		switch p := prov.(type) {
		case types.FileProvenance:
			lines = append(lines, field("File:", p.FilePath))
		case types.GitProvenance:
			lines = append(lines, field("Repo:", p.RepoPath), field("Path:", p.BlobPath))
			if p.Commit != nil {
				lines = append(lines, field("Commit:", p.Commit.CommitID))
				if p.Commit.AuthorName != "" {
					lines = append(lines, field("Author:", fmt.Sprintf("%s <%s>", p.Commit.AuthorName, p.Commit.AuthorEmail)))
				}
			}
		case types.ArchiveProvenance:
			lines = append(lines, field("Archive:", p.ArchivePath), field("Member:", p.MemberPath))
		case types.ObjectProvenance:
			lines = append(lines, field("Object:", p.Path()))
		case types.StreamProvenance:
			lines = append(lines, field("Stream:", p.Name))
		}
	}

	lines = append(lines, field("Blob:", shortID(m.BlobID)))

	if m.Location.Source.Start.Line > 0 {
		lines = append(lines, fmt.Sprintf("  %s %d:%d - %d:%d (bytes %d-%d)",
			fieldLabelStyle.Render("Location:"),
			m.Location.Source.Start.Line, m.Location.Source.Start.Column,
			m.Location.Source.End.Line, m.Location.Source.End.Column,
			m.Location.Offset.Start, m.Location.Offset.End))
	}

	lines = append(lines, "", "  "+fieldLabelStyle.Render("Snippet:"))

	snippetWidth := maxWidth - 6
	before := strings.TrimRight(string(m.Snippet.Before), "\n\r")
	after := strings.TrimLeft(string(m.Snippet.After), "\n\r")

	for _, line := range strings.Split(before, "\n") {
		if line != "" {
			lines = append(lines, "    "+snippetContextStyle.Render(truncateString(line, snippetWidth)))
		}
	}
	for _, line := range strings.Split(string(m.Snippet.Matching), "\n") {
		lines = append(lines, "    "+snippetMatchStyle.Render(truncateString(line, snippetWidth)))
	}
	for _, line := range strings.Split(after, "\n") {
		if line != "" {
			lines = append(lines, "    "+snippetContextStyle.Render(truncateString(line, snippetWidth)))
		}
	}

	return lines
}

func shortID(id types.BlobID) string {
	h := id.Hex()
	if len(h) > 12 {
		return h[:12] + "..."
	}
	return h
}

func (dp detailsPane) visibleRows() int {
	return max(1, dp.height-4)
}

func (dp *detailsPane) setSize(w, h int) {
	dp.width = w
	dp.height = h
}
