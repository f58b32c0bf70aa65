package config

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type MarkerKind string

const (
	MarkerError       MarkerKind = "error"
	MarkerBlocked     MarkerKind = "blocked"
	MarkerInterrupted MarkerKind = "interrupted"
)

// Markers renders the inline lines appended to a message for errors, blocked
// operations and interrupted turns.
type Markers struct {
	templates map[MarkerKind]*template.Template
}

func (s *Settings) CompileMarkers() (*Markers, error) {
	m := &Markers{templates: map[MarkerKind]*template.Template{}}
	for kind, src := range map[MarkerKind]string{
		MarkerError:       s.Markers.Error,
		MarkerBlocked:     s.Markers.Blocked,
		MarkerInterrupted: s.Markers.Interrupted,
	} {
		t, err := template.New(string(kind)).Funcs(sprig.TxtFuncMap()).Parse(src)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse %s marker", kind)
		}
		m.templates[kind] = t
	}
	return m, nil
}

// Render executes the marker template for kind. A failing template falls back to the
// raw content so a marker is never lost.
func (m *Markers) Render(kind MarkerKind, content string) string {
	t, ok := m.templates[kind]
	if !ok {
		return fallbackMarker(kind, content)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, struct{ Content string }{Content: content}); err != nil {
		log.Warn().Err(err).Str("marker", string(kind)).Msg("could not render marker")
		return fallbackMarker(kind, content)
	}
	return sb.String()
}

func fallbackMarker(kind MarkerKind, content string) string {
	if content == "" {
		return "\n\n[" + string(kind) + "]\n\n"
	}
	return "\n\n[" + string(kind) + "] " + strings.TrimSpace(content) + "\n\n"
}
