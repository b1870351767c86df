package cmd

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
)

var stateStyles = map[string]lipgloss.Style{
	"idle":      dimStyle,
	"countdown": warningStyle,
	"recording": errorStyle,
	"paused":    warningStyle,
	"stopping":  dimStyle,
}

func styleState(state string) string {
	if s, ok := stateStyles[state]; ok {
		return s.Render(state)
	}
	return state
}
