package config

import (
	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ToolMatcher matches tool names against exact names or glob patterns such as "mcp__*".
type ToolMatcher struct {
	patterns []string
}

func NewToolMatcher(patterns ...string) ToolMatcher {
	return ToolMatcher{patterns: append([]string(nil), patterns...)}
}

func (m ToolMatcher) Match(name string) bool {
	if name == "" {
		return false
	}
	for _, p := range m.patterns {
		if p == name {
			return true
		}
		ok, err := glob.Match(p, name)
		if err != nil {
			log.Debug().Err(err).Str("pattern", p).Msg("invalid tool pattern")
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func (m ToolMatcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := glob.Match(p, ""); err != nil {
			return errors.Wrapf(err, "invalid tool pattern %q", p)
		}
	}
	return nil
}
