package render

import "github.com/charmbracelet/lipgloss"

// StylePlain disables markdown rendering and colors.
const StylePlain = "plain"

type Styles struct {
	ToolLabel     lipgloss.Style
	ToolCompleted lipgloss.Style
	ToolError     lipgloss.Style
	ToolBlocked   lipgloss.Style
	Subagent      lipgloss.Style
	Thinking      lipgloss.Style
	Dim           lipgloss.Style
	Usage         lipgloss.Style
	DiffAdd       lipgloss.Style
	DiffRemove    lipgloss.Style
}

func DefaultStyles() *Styles {
	dim := lipgloss.AdaptiveColor{Light: "#888888", Dark: "#777777"}

	return &Styles{
		ToolLabel:     lipgloss.NewStyle().Bold(true),
		ToolCompleted: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}),
		ToolError:     lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}),
		ToolBlocked:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#EF6C00", Dark: "#FFB74D"}),
		Subagent:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141")),
		Thinking:      lipgloss.NewStyle().Italic(true).Foreground(dim),
		Dim:           lipgloss.NewStyle().Foreground(dim),
		Usage:         lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		DiffAdd:       lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		DiffRemove:    lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
	}
}

// PlainStyles renders everything as is.
func PlainStyles() *Styles {
	s := lipgloss.NewStyle()
	return &Styles{
		ToolLabel:     s,
		ToolCompleted: s,
		ToolError:     s,
		ToolBlocked:   s,
		Subagent:      s,
		Thinking:      s,
		Dim:           s,
		Usage:         s,
		DiffAdd:       s,
		DiffRemove:    s,
	}
}
