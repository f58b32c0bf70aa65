package stream

import (
	"strings"

	"github.com/go-go-golems/turnweaver/pkg/config"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// BlockedDetector decides from a tool result whether the operation was refused by a
// permission or sandbox layer rather than failing on its own.
type BlockedDetector struct {
	exempt       config.ToolMatcher
	phrases      []string
	errorPhrases []string
}

func NewBlockedDetector(exempt config.ToolMatcher, phrases []string, errorPhrases []string) *BlockedDetector {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, p := range in {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return &BlockedDetector{
		exempt:       exempt,
		phrases:      lower(phrases),
		errorPhrases: lower(errorPhrases),
	}
}

func NewBlockedDetectorFromSettings(s *config.Settings) *BlockedDetector {
	return NewBlockedDetector(s.BlockedExemptTools(), s.Tools.BlockedPhrases, s.Tools.BlockedErrorPhrases)
}

// IsBlocked applies the content heuristics. Exempt tools are never blocked.
func (d *BlockedDetector) IsBlocked(toolName string, content string, isError bool) bool {
	if d.exempt.Match(toolName) {
		return false
	}
	text := strings.ToLower(content)
	for _, p := range d.phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	if isError {
		for _, p := range d.errorPhrases {
			if strings.Contains(text, p) {
				return true
			}
		}
	}
	return false
}

// Status derives the final status of a tool call from its result.
func (d *BlockedDetector) Status(toolName string, content string, isError bool) turns.ToolCallStatus {
	if d.IsBlocked(toolName, content, isError) {
		return turns.ToolCallStatusBlocked
	}
	if isError {
		return turns.ToolCallStatusError
	}
	return turns.ToolCallStatusCompleted
}
