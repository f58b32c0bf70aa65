package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnweaver/pkg/config"
	"github.com/go-go-golems/turnweaver/pkg/events"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

func toolMatcher(patterns ...string) config.ToolMatcher {
	return config.NewToolMatcher(patterns...)
}

func contextForTest() context.Context {
	return context.Background()
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s, err := config.NewSettings()
	require.NoError(t, err)
	s.Indicator.Debounce = 20 * time.Millisecond
	s.Indicator.Interval = 10 * time.Millisecond
	return s
}

type testTurn struct {
	t           *testing.T
	renderer    *recordingRenderer
	host        *fakeHost
	coordinator *Coordinator
	msg         *turns.Message
	sessionID   string
}

func newTestTurn(t *testing.T, options ...CoordinatorOption) *testTurn {
	t.Helper()
	tt := &testTurn{
		t:         t,
		renderer:  &recordingRenderer{},
		host:      newFakeHost(),
		msg:       turns.NewMessage(),
		sessionID: "session-1",
	}
	opts := append([]CoordinatorOption{
		WithIndicatorHost(tt.host),
		WithSessionIdentity(SessionIdentityFunc(func() string { return tt.sessionID })),
	}, options...)
	c, err := NewCoordinator(tt.renderer, testSettings(t), opts...)
	require.NoError(t, err)
	tt.coordinator = c
	c.BeginTurn(tt.msg, "container")
	t.Cleanup(c.Reset)
	return tt
}

func (tt *testTurn) feed(evs ...events.Event) {
	for _, e := range evs {
		tt.coordinator.Handle(contextForTest(), e, tt.msg)
	}
}

func (tt *testTurn) finish(opts FinishOptions) {
	tt.coordinator.Finish(contextForTest(), tt.msg, opts)
}

func meta() events.EventMetadata {
	return events.EventMetadata{}
}

func text(s string) events.Event {
	return events.NewTextEvent(meta(), s)
}

func thinking(s string) events.Event {
	return events.NewThinkingEvent(meta(), s)
}

func toolUse(id, name string, input map[string]interface{}) *events.EventToolUse {
	return events.NewToolUseEvent(meta(), id, name, input)
}

func toolResult(id, content string, isError bool) *events.EventToolResult {
	return events.NewToolResultEvent(meta(), id, content, isError)
}

func nested(parent string, e interface{ SetParentID(string) }) events.Event {
	e.SetParentID(parent)
	return e.(events.Event)
}

func usage(input, window int, sessionID string) events.Event {
	return events.NewUsageEvent(meta(), events.Usage{Model: "m", InputTokens: input, ContextWindow: window}, sessionID)
}

func done() events.Event {
	return events.NewDoneEvent(meta())
}

func blockKinds(m *turns.Message) []turns.BlockKind {
	out := make([]turns.BlockKind, len(m.Blocks))
	for i, b := range m.Blocks {
		out[i] = b.Kind
	}
	return out
}
