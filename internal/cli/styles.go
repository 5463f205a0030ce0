package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorCyan  = lipgloss.Color("14")
	colorGreen = lipgloss.Color("10")
	colorGray  = lipgloss.Color("240")
	colorBlue  = lipgloss.Color("12")
)

var (
	// StyleNoun styles identifiable nouns: targets, paths, deployment ids.
	StyleNoun = lipgloss.NewStyle().Foreground(colorCyan)
	// StyleDim styles secondary detail such as ineligible targets.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// FormatCheckmark renders a green checkmark with a message.
func FormatCheckmark(msg string) string {
	return lipgloss.NewStyle().Foreground(colorGreen).Render("✔") + " " + msg
}

// renderTable renders rows under headers with a dim border.
func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorGray)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(colorBlue).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range rows {
		t.Row(r...)
	}
	return t.String()
}
