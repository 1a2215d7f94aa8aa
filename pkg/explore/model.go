// Package explore is an interactive terminal browser for the findings in a
// scan datastore.
package explore

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// focusedPane tracks which pane has keyboard focus.
type focusedPane int

const (
	paneFilters focusedPane = iota
	paneFindings
	paneDetails
)

// overlay tracks which modal overlay is active.
type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlaySource
)

// pagerFinishedMsg is sent when an external pager process exits.
type pagerFinishedMsg struct{ err error }

// Model is the root Bubble Tea model for the explore TUI.
type Model struct {
	data     *exploreData
	filters  filterPane
	findings findingsPane
	details  detailsPane

	focus         focusedPane
	activeOverlay overlay
	showFilters   bool

	// scrollable overlay text
	overlayLines  []string
	overlayOffset int
	overlayTitle  string

	width  int
	height int
	err    error
}

// New creates a Model over the datastore at datastorePath.
func New(datastorePath string) (Model, error) {
	data, err := loadData(datastorePath)
	if err != nil {
		return Model{}, err
	}
	return newModel(data), nil
}

func newModel(data *exploreData) Model {
	m := Model{
		data:        data,
		filters:     newFilterPane(buildFacets(data.findings)),
		findings:    newFindingsPane(data.findings),
		showFilters: true,
	}
	m.setFocus(paneFindings)
	m.details.setFinding(m.findings.selectedFinding())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("kwmatch explore")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case pagerFinishedMsg:
		m.err = msg.err
		return m, nil

	case tea.MouseMsg:
		if m.activeOverlay != overlayNone {
			return m, nil
		}
		if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		m.handleMouseClick(msg.X, msg.Y)
		return m, nil

	case tea.KeyMsg:
		if m.activeOverlay != overlayNone {
			m.updateOverlay(msg)
			return m, nil
		}

		switch {
		case keyMatches(msg, defaultKeys.ForceQuit), keyMatches(msg, defaultKeys.Quit):
			return m, tea.Quit
		case keyMatches(msg, defaultKeys.ToggleHelp):
			m.showOverlay(overlayHelp, " Help (q to close) ", helpText, 0)
			return m, nil
		case keyMatches(msg, defaultKeys.ToggleFilters):
			m.showFilters = !m.showFilters
			if !m.showFilters && m.focus == paneFilters {
				m.setFocus(paneFindings)
			}
			return m, nil
		case keyMatches(msg, defaultKeys.FocusFilters):
			if m.showFilters {
				m.setFocus(paneFilters)
			}
			return m, nil
		case keyMatches(msg, defaultKeys.FocusFindings):
			m.setFocus(paneFindings)
			return m, nil
		case keyMatches(msg, defaultKeys.FocusDetails):
			m.setFocus(paneDetails)
			return m, nil
		case keyMatches(msg, defaultKeys.NextPane):
			m.cycleFocus()
			return m, nil
		case keyMatches(msg, defaultKeys.OpenSource) && m.focus != paneFilters:
			return m, m.openSource()
		}

		var cmd tea.Cmd
		switch m.focus {
		case paneFilters:
			m.filters, cmd = m.filters.Update(msg)
			m.applyFilters()
		case paneFindings:
			prev := m.findings.selectedFinding()
			m.findings, cmd = m.findings.Update(msg)
			if f := m.findings.selectedFinding(); f != prev {
				m.details.setFinding(f)
			}
		case paneDetails:
			m.details, cmd = m.details.Update(msg)
		}
		return m, cmd
	}

	return m, nil
}

func (m *Model) showOverlay(o overlay, title, text string, offset int) {
	m.activeOverlay = o
	m.overlayTitle = title
	m.overlayLines = strings.Split(text, "\n")
	m.overlayOffset = offset
}

func (m *Model) updateOverlay(msg tea.KeyMsg) {
	page := max(1, m.height/2)
	switch {
	case keyMatches(msg, defaultKeys.Quit),
		keyMatches(msg, defaultKeys.ForceQuit),
		msg.String() == "esc",
		m.activeOverlay == overlayHelp && keyMatches(msg, defaultKeys.ToggleHelp),
		m.activeOverlay == overlaySource && keyMatches(msg, defaultKeys.OpenSource):
		m.activeOverlay = overlayNone
	case keyMatches(msg, defaultKeys.Down):
		m.overlayOffset++
	case keyMatches(msg, defaultKeys.Up):
		m.overlayOffset = max(0, m.overlayOffset-1)
	case keyMatches(msg, defaultKeys.PageDown):
		m.overlayOffset += page
	case keyMatches(msg, defaultKeys.PageUp):
		m.overlayOffset = max(0, m.overlayOffset-page)
	case keyMatches(msg, defaultKeys.Home):
		m.overlayOffset = 0
	}
	m.overlayOffset = min(m.overlayOffset, max(0, len(m.overlayLines)-1))
}

// layout returns the pane sizes for the current window.
func (m Model) layout() (filtersWidth, dataWidth, findingsHeight, detailsHeight int) {
	contentHeight := m.height - 2 // status bar + padding
	dataWidth = m.width
	if m.showFilters {
		filtersWidth = min(m.width*30/100, 50)
		dataWidth -= filtersWidth
	}
	findingsHeight = contentHeight * 40 / 100
	detailsHeight = contentHeight - findingsHeight
	return
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.activeOverlay != overlayNone {
		return m.renderOverlay()
	}

	filtersWidth, dataWidth, findingsHeight, detailsHeight := m.layout()
	m.findings.setSize(dataWidth, findingsHeight)
	m.details.setSize(dataWidth, detailsHeight)
	dataColumn := lipgloss.JoinVertical(lipgloss.Left, m.findings.View(), m.details.View())

	main := dataColumn
	if m.showFilters {
		m.filters.setSize(filtersWidth, m.height-2)
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.filters.View(), dataColumn)
	}

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := fmt.Sprintf(" %d findings | %d shown", len(m.data.findings), len(m.findings.rows))
	if m.err != nil {
		status += " | " + m.err.Error()
	}
	left := statusBarStyle.Render(status)

	var hints []string
	for _, h := range [][2]string{
		{"j/k", "nav"}, {"tab", "focus"}, {"h/l", "match"},
		{"s/S", "sort"}, {"o", "source"}, {"F7", "filters"}, {"?", "help"},
	} {
		hints = append(hints, helpKeyStyle.Render(h[0])+":"+helpDescStyle.Render(h[1]))
	}
	right := strings.Join(hints, "  ")

	gap := max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderOverlay() string {
	overlayWidth := m.width * 80 / 100
	overlayHeight := m.height * 80 / 100
	visible := max(1, overlayHeight-4)

	end := min(m.overlayOffset+visible, len(m.overlayLines))
	var lines []string
	for _, l := range m.overlayLines[min(m.overlayOffset, end):end] {
		lines = append(lines, truncateString(l, max(1, overlayWidth-6)))
	}

	box := modalStyle.
		Width(overlayWidth - 4).
		Height(overlayHeight - 2).
		Render(strings.Join(lines, "\n"))

	view := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(m.overlayTitle), box)

	hPad := (m.width - lipgloss.Width(view)) / 2
	vPad := (m.height - lipgloss.Height(view)) / 2
	return strings.Repeat("\n", max(0, vPad)) +
		lipgloss.NewStyle().PaddingLeft(max(0, hPad)).Render(view)
}

func (m *Model) setFocus(p focusedPane) {
	m.filters.focused = p == paneFilters
	m.findings.focused = p == paneFindings
	m.details.focused = p == paneDetails
	m.focus = p
}

func (m *Model) cycleFocus() {
	next := (m.focus + 1) % 3
	if next == paneFilters && !m.showFilters {
		next = paneFindings
	}
	m.setFocus(next)
}

func (m *Model) handleMouseClick(x, y int) {
	filtersWidth, _, findingsHeight, _ := m.layout()
	contentHeight := m.height - 2

	switch {
	case y >= contentHeight:
		return
	case m.showFilters && x < filtersWidth:
		m.setFocus(paneFilters)
		if idx := y - 2 + m.filters.offset; y >= 2 && idx < len(m.filters.items) {
			m.filters.cursor = idx
			m.filters.toggleCurrent()
			m.applyFilters()
		}
	case y < findingsHeight:
		m.setFocus(paneFindings)
		// title + border top + header + separator
		if idx := y - 4 + m.findings.offset; y >= 4 && idx < len(m.findings.rows) {
			m.findings.cursor = idx
			m.details.setFinding(m.findings.selectedFinding())
		}
	default:
		m.setFocus(paneDetails)
	}
}

func (m *Model) applyFilters() {
	rows := m.data.findings
	if m.filters.facets.hasActiveFilters() {
		rows = nil
		for _, f := range m.data.findings {
			if m.filters.facets.matchesFinding(f) {
				rows = append(rows, f)
			}
		}
	}
	prev := m.findings.selectedFinding()
	m.findings.setFilteredRows(rows)
	m.filters.facets.updateCounts(m.data.findings)

	if f := m.findings.selectedFinding(); f != prev {
		m.details.setFinding(f)
	}
}

// openSource shows the selected match in context: the stored blob when the
// scan kept content, else the file in $PAGER, else the snippet.
func (m *Model) openSource() tea.Cmd {
	match := m.details.selectedMatch()
	if match == nil {
		return nil
	}

	if content := m.data.content(match.BlobID); content != nil {
		line := max(0, match.Location.Source.Start.Line-1)
		m.showOverlay(overlaySource, " Blob "+shortID(match.BlobID)+" (q to close) ", highlight(content, match.Location), max(0, line-3))
		return nil
	}

	for _, prov := range match.Provenance {
		if fp, ok := prov.(types.FileProvenance); ok {
			if _, err := os.Stat(fp.FilePath); err == nil {
				return openInPager(fp.FilePath, match.Location.Source.Start.Line)
			}
		}
	}

	var sb strings.Builder
	sb.Write(match.Snippet.Before)
	sb.WriteString(snippetMatchStyle.Render(string(match.Snippet.Matching)))
	sb.Write(match.Snippet.After)
	m.showOverlay(overlaySource, " Snippet (q to close) ", sb.String(), 0)
	return nil
}

// highlight renders content with the matched span styled.
func highlight(content []byte, loc types.Location) string {
	start := int(min(max(loc.Offset.Start, 0), int64(len(content))))
	end := int(min(max(loc.Offset.End, int64(start)), int64(len(content))))
	return string(content[:start]) + snippetMatchStyle.Render(string(content[start:end])) + string(content[end:])
}

func openInPager(filePath string, line int) tea.Cmd {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}

	var args []string
	if line > 0 && pager == "less" {
		args = append(args, fmt.Sprintf("+%d", line))
	}
	args = append(args, filePath)

	c := exec.Command(pager, args...)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return pagerFinishedMsg{err: err}
	})
}

// Close releases resources held by the model.
func (m *Model) Close() error {
	if m.data != nil {
		return m.data.close()
	}
	return nil
}

const helpText = `kwmatch explore - keyword findings browser

NAVIGATION
  j/k or Up/Down    Move cursor up/down
  h/l or Left/Right Previous/next match of the finding (details)
  Ctrl+f/Ctrl+b     Page down/up
  g/G               Jump to top/bottom

FOCUS
  Tab               Next pane
  F1                Focus filters pane
  f                 Focus findings pane
  d                 Focus details pane
  F7                Toggle filters pane visibility

FILTERS
  x, Space, Enter   Toggle filter value or collapse a facet
  Ctrl+r            Reset all filters

VIEWS
  s                 Cycle sort column
  S                 Reverse sort order
  o                 Open source (stored blob, $PAGER, or snippet)
  ?                 Toggle this help screen

QUIT
  q                 Quit (closes an overlay first)
  Ctrl+c            Force quit`
