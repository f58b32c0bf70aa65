package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Usage is the token accounting reported by a usage chunk.
type Usage struct {
	Model                    string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	InputTokens              int    `json:"inputTokens" yaml:"input_tokens" mapstructure:"input_tokens"`
	OutputTokens             int    `json:"outputTokens,omitempty" yaml:"output_tokens,omitempty" mapstructure:"output_tokens"`
	CacheCreationInputTokens int    `json:"cacheCreationInputTokens,omitempty" yaml:"cache_creation_input_tokens,omitempty" mapstructure:"cache_creation_input_tokens"`
	CacheReadInputTokens     int    `json:"cacheReadInputTokens,omitempty" yaml:"cache_read_input_tokens,omitempty" mapstructure:"cache_read_input_tokens"`
	ContextWindow            int    `json:"contextWindow,omitempty" yaml:"context_window,omitempty" mapstructure:"context_window"`
}

type EventMetadata struct {
	ID string `json:"messageId,omitempty" yaml:"message_id,omitempty" mapstructure:"message_id"`
	// Correlation identifiers
	SessionID string `json:"sessionId,omitempty" yaml:"session_id,omitempty" mapstructure:"session_id"`
	TurnID    string `json:"turnId,omitempty" yaml:"turn_id,omitempty" mapstructure:"turn_id"`
	// Extra carries producer-specific values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

// NewEventMetadata returns metadata with a fresh message id.
func NewEventMetadata() EventMetadata {
	return EventMetadata{ID: uuid.NewString()}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	if em.ID != "" {
		e.Str("message_id", em.ID)
	}
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if len(em.Extra) > 0 {
		e.Interface("extra", em.Extra)
	}
}
