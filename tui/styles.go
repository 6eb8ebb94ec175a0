package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	accentColor    = lipgloss.Color("#5FAFAF")
	secondaryColor = lipgloss.Color("#666666")
	errorColor     = lipgloss.Color("#AF5F5F")
	highColor      = lipgloss.Color("#D75F5F")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	subtleStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)

	// hoverColumnStyle marks the column a dragged card would land in.
	hoverColumnStyle = columnStyle.
				BorderForeground(accentColor).
				BorderStyle(lipgloss.DoubleBorder())

	cardStyle = lipgloss.NewStyle().
			PaddingLeft(1)

	selectedCardStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(accentColor)

	// draggedCardStyle dims the source card while its overlay is shown.
	draggedCardStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Faint(true).
				Strikethrough(true)

	overlayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accentColor).
			Padding(0, 1)

	highBadgeStyle = lipgloss.NewStyle().
			Foreground(highColor)

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// stageStyle colors a column header with its stage color.
func stageStyle(color string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	if color != "" {
		s = s.Foreground(lipgloss.Color(color))
	}
	return s
}
