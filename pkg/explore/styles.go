package explore

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("#3B82F6") // blue
	colorSecondary = lipgloss.Color("10")      // green
	colorMatch     = lipgloss.Color("#F59E0B") // amber
	colorMuted     = lipgloss.Color("8")       // gray
	colorAccent    = lipgloss.Color("#14B8A6") // teal
	colorHighlight = lipgloss.Color("15")      // white
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary)

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorMuted)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHighlight).
			Background(colorPrimary).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 2)
)

var (
	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("17")).
				Foreground(colorHighlight)

	headerRowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)
)

var (
	snippetMatchStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorMatch)
	snippetContextStyle = lipgloss.NewStyle().Foreground(colorMuted)

	statusBarStyle = lipgloss.NewStyle().Foreground(colorMuted)
	helpKeyStyle   = lipgloss.NewStyle().Foreground(colorAccent)
	helpDescStyle  = lipgloss.NewStyle().Foreground(colorMuted)

	facetLabelStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	facetSelectedStyle = lipgloss.NewStyle().Foreground(colorSecondary)
	facetCountStyle    = lipgloss.NewStyle().Foreground(colorMuted)

	fieldLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	fieldValueStyle = lipgloss.NewStyle().Foreground(colorHighlight)
)
