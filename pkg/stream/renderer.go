package stream

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// Handle is an opaque presentational handle owned by a renderer: a content
// container, an open span, a rendered tool call or a subagent block. The
// coordinator only stores handles and passes them back.
type Handle interface{}

// SpanRenderer draws the open text and thinking spans of a turn.
type SpanRenderer interface {
	OpenText(ctx context.Context, container Handle) Handle
	OpenThinking(ctx context.Context, container Handle) Handle
	// RenderContent re-renders a span with its full accumulated content.
	RenderContent(ctx context.Context, span Handle, markdown string) error
	// RenderPlaceholder replaces a span whose content could not be rendered.
	RenderPlaceholder(ctx context.Context, span Handle, err error)
	FinalizeText(ctx context.Context, span Handle, content string)
	FinalizeThinking(ctx context.Context, span Handle, content string, elapsed time.Duration)
}

// ToolRenderer draws generic tool calls.
type ToolRenderer interface {
	RenderToolCall(ctx context.Context, container Handle, call *turns.ToolCall) Handle
	// UpdateToolLabel refreshes the label after more input arrived. It is called for
	// write/edit handles too.
	UpdateToolLabel(ctx context.Context, h Handle, call *turns.ToolCall)
	FinalizeToolCall(ctx context.Context, h Handle, call *turns.ToolCall)
}

// WriteEditRenderer draws file-editing tool calls with a diff preview.
type WriteEditRenderer interface {
	RenderWriteEdit(ctx context.Context, container Handle, call *turns.ToolCall) Handle
	FinalizeWriteEdit(ctx context.Context, h Handle, call *turns.ToolCall)
}

// SubagentRenderer draws nested agent executions.
type SubagentRenderer interface {
	RenderSubagent(ctx context.Context, container Handle, rec *turns.SubagentRecord) Handle
	RenderAsyncSubagent(ctx context.Context, container Handle, rec *turns.SubagentRecord) Handle
	AddSubagentToolCall(ctx context.Context, h Handle, rec *turns.SubagentRecord, call *turns.ToolCall)
	UpdateSubagentToolCall(ctx context.Context, h Handle, rec *turns.SubagentRecord, call *turns.ToolCall)
	// UpdateSubagent is called for label changes and async status changes.
	UpdateSubagent(ctx context.Context, h Handle, rec *turns.SubagentRecord)
	FinalizeSubagent(ctx context.Context, h Handle, rec *turns.SubagentRecord)
}

type UsageRenderer interface {
	RenderUsage(ctx context.Context, usage *turns.UsageSnapshot)
}

type Renderer interface {
	SpanRenderer
	ToolRenderer
	WriteEditRenderer
	SubagentRenderer
	UsageRenderer
}

// SessionIdentity provides the id of the session currently shown, used to drop
// usage reported by other sessions.
type SessionIdentity interface {
	CurrentSessionID() string
}

// SessionIdentityFunc adapts a function to SessionIdentity.
type SessionIdentityFunc func() string

func (f SessionIdentityFunc) CurrentSessionID() string {
	return f()
}

// IndicatorHost displays the "thinking" affordance and the elapsed readout. Its
// methods are called from timer goroutines.
type IndicatorHost interface {
	// Attached reports whether the host can still display anything.
	Attached() bool
	ShowIndicator()
	MoveIndicatorToBottom()
	HideIndicator()
	UpdateElapsed(elapsed time.Duration)
}

// guard runs a renderer call and turns a panic into an error so a misbehaving
// renderer never takes the turn down.
func guard(op string, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("renderer panicked in %s: %v", op, r)
			log.Warn().Str("op", op).Interface("panic", r).Msg("renderer panicked")
		}
	}()
	f()
	return nil
}

// guardHandle is guard for calls returning a handle.
func guardHandle(op string, f func() Handle) Handle {
	var h Handle
	_ = guard(op, func() {
		h = f()
	})
	return h
}
