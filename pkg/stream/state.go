package stream

import (
	"strings"
	"time"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// span is an open text or thinking block that has not been appended yet.
type span struct {
	kind    turns.BlockKind
	handle  Handle
	content strings.Builder
	started time.Time
}

// TurnState is the mutable bookkeeping of the turn currently being assembled.
type TurnState struct {
	Container     Handle
	Message       *turns.Message
	ResponseStart time.Time
	// SubagentSpawned is set once any nested agent was started this turn.
	SubagentSpawned bool
	// IgnoreUsage drops every usage chunk until the next reset.
	IgnoreUsage bool
	Usage       *turns.UsageSnapshot
	Done        bool

	text     *span
	thinking *span
	pending  *PendingTools
	handles  *HandleRegistry
}

func NewTurnState() *TurnState {
	return &TurnState{
		pending: NewPendingTools(),
		handles: NewHandleRegistry(),
	}
}

// Reset abandons the current turn. Buffered tool calls are dropped without rendering.
func (s *TurnState) Reset() {
	s.Container = nil
	s.Message = nil
	s.ResponseStart = time.Time{}
	s.SubagentSpawned = false
	s.IgnoreUsage = false
	s.Usage = nil
	s.Done = false
	s.text = nil
	s.thinking = nil
	s.pending.Clear()
	s.handles.Reset()
}

func (s *TurnState) Pending() *PendingTools {
	return s.pending
}

func (s *TurnState) Handles() *HandleRegistry {
	return s.handles
}

// OpenSpan returns the kind of the open span, or "" when none is open.
func (s *TurnState) OpenSpan() turns.BlockKind {
	switch {
	case s.thinking != nil:
		return turns.BlockKindThinking
	case s.text != nil:
		return turns.BlockKindText
	}
	return ""
}

// HasOpenSpan reports whether a text or thinking span is open.
func (s *TurnState) HasOpenSpan() bool {
	return s.text != nil || s.thinking != nil
}
