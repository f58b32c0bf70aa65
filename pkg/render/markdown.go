package render

import (
	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer wraps glamour for terminal markdown rendering. The "plain" style
// passes markdown through untouched.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
	style    string
}

// NewMarkdownRenderer creates a new markdown renderer with the given width and style.
// If style is empty, "auto" is used.
func NewMarkdownRenderer(width int, style string) (*MarkdownRenderer, error) {
	if style == "" {
		style = "auto"
	}
	ret := &MarkdownRenderer{width: width, style: style}
	if style == StylePlain {
		return ret, nil
	}
	r, err := glamour.NewTermRenderer(
		glamourOption(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	ret.renderer = r
	return ret, nil
}

// Render renders markdown text for terminal display.
func (m *MarkdownRenderer) Render(text string) (string, error) {
	if m.renderer == nil {
		return text, nil
	}
	return m.renderer.Render(text)
}

func (m *MarkdownRenderer) Style() string {
	return m.style
}

// glamourOption returns the glamour TermRendererOption for a style name.
func glamourOption(style string) glamour.TermRendererOption {
	switch style {
	case "dark", "light", "notty", "dracula", "pink", "ascii":
		return glamour.WithStandardStyle(style)
	default:
		return glamour.WithAutoStyle()
	}
}
