package turns

import "math"

// UsageSnapshot is the token accounting shown for a turn. ContextTokens and Percentage
// are derived from the counts when the snapshot is built.
type UsageSnapshot struct {
	Model                    string `yaml:"model,omitempty" json:"model,omitempty"`
	InputTokens              int    `yaml:"input_tokens" json:"inputTokens"`
	CacheCreationInputTokens int    `yaml:"cache_creation_input_tokens" json:"cacheCreationInputTokens"`
	CacheReadInputTokens     int    `yaml:"cache_read_input_tokens" json:"cacheReadInputTokens"`
	ContextWindow            int    `yaml:"context_window" json:"contextWindow"`
	ContextTokens            int    `yaml:"context_tokens" json:"contextTokens"`
	Percentage               int    `yaml:"percentage" json:"percentage"`
}

func NewUsageSnapshot(model string, input, cacheCreation, cacheRead, contextWindow int) *UsageSnapshot {
	u := &UsageSnapshot{
		Model:                    model,
		InputTokens:              input,
		CacheCreationInputTokens: cacheCreation,
		CacheReadInputTokens:     cacheRead,
		ContextWindow:            contextWindow,
	}
	u.ContextTokens = input + cacheCreation + cacheRead
	u.Percentage = contextPercentage(u.ContextTokens, contextWindow)
	return u
}

// contextPercentage is clamped to [0, 100]; an unknown window yields 0.
func contextPercentage(tokens, window int) int {
	if window <= 0 || tokens <= 0 {
		return 0
	}
	p := int(math.Round(float64(tokens) / float64(window) * 100))
	if p > 100 {
		return 100
	}
	return p
}
