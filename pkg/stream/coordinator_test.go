package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnweaver/pkg/events"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

func TestTextAccumulatesIntoOneBlock(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(text("Hello "), text("world"), done())

	require.Equal(t, "Hello world", tt.msg.Content)
	require.Len(t, tt.msg.Blocks, 1)
	assert.Equal(t, turns.NewTextBlock("Hello world"), tt.msg.Blocks[0])
	assert.Equal(t, []string{
		"open-text",
		"render Hello ",
		"render Hello world",
		"finalize-text Hello world",
	}, tt.renderer.Calls())
	assert.True(t, tt.coordinator.State().Done)
}

func TestThinkingAndTextNeverOverlap(t *testing.T) {
	tt := newTestTurn(t)
	seq := []events.Event{
		thinking("a"), thinking("b"), text("x"), thinking("c"),
		toolUse("t1", "Read", nil), thinking("d"), text("y"), done(),
	}
	for _, e := range seq {
		tt.feed(e)
		st := tt.coordinator.State()
		assert.False(t, st.text != nil && st.thinking != nil, "two spans open after %s", e.Type())
	}

	assert.Equal(t, []turns.BlockKind{
		turns.BlockKindThinking,
		turns.BlockKindText,
		turns.BlockKindThinking,
		turns.BlockKindToolUse,
		turns.BlockKindThinking,
		turns.BlockKindText,
	}, blockKinds(tt.msg))
	assert.Equal(t, "ab", tt.msg.Blocks[0].Content)
	assert.Equal(t, "xy", tt.msg.Content)
}

func TestThinkingWithoutContainerIsIgnored(t *testing.T) {
	tt := newTestTurn(t)
	tt.coordinator.BeginTurn(tt.msg, nil)
	tt.feed(thinking("hm"), done())
	assert.Empty(t, tt.msg.Blocks)
	assert.Empty(t, tt.renderer.CallsWithPrefix("open-thinking"))
}

func TestToolIsRenderedBeforeFollowingText(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(toolUse("A", "Read", map[string]interface{}{"file_path": "x"}))
	assert.Equal(t, 1, tt.coordinator.State().Pending().Len())
	assert.Empty(t, tt.renderer.CallsWithPrefix("tool "))

	tt.feed(text("after"))
	assert.Equal(t, 0, tt.coordinator.State().Pending().Len())
	assert.Equal(t, []string{"tool A", "open-text", "render after"}, tt.renderer.Calls())
}

func TestFlushPreservesInsertionOrder(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(
		toolUse("A", "Read", nil),
		toolUse("B", "Write", map[string]interface{}{"file_path": "b.md"}),
		toolUse("C", "Bash", nil),
		done(),
	)
	assert.Equal(t, []string{"tool A", "write-edit B", "tool C"}, tt.renderer.Calls())
	assert.Equal(t, []string{"A", "B", "C"}, tt.coordinator.State().Handles().IDs())
	assert.Equal(t, []turns.BlockKind{turns.BlockKindToolUse, turns.BlockKindToolUse, turns.BlockKindToolUse}, blockKinds(tt.msg))
}

func TestToolResultFlushesOnlyItsOwnCall(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(
		toolUse("A", "Read", nil),
		toolUse("B", "Edit", map[string]interface{}{"old_string": "a", "new_string": "b"}),
		toolResult("B", "ok", false),
	)
	assert.Equal(t, []string{"write-edit B", "finalize-write-edit B completed"}, tt.renderer.Calls())
	assert.Equal(t, []string{"A"}, tt.coordinator.State().Pending().IDs())

	tt.feed(toolResult("A", "content", false))
	assert.Equal(t, "tool A", tt.renderer.Calls()[2])
	assert.Equal(t, turns.ToolCallStatusCompleted, tt.msg.FindToolCall("A").Status)
	assert.Equal(t, "content", tt.msg.FindToolCall("A").Result)

	// the block order follows arrival, not rendering
	assert.Equal(t, "A", tt.msg.Blocks[0].ToolID)
	assert.Equal(t, "B", tt.msg.Blocks[1].ToolID)
}

func TestRepeatToolUseMergesInput(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(toolUse("A", "Write", map[string]interface{}{"file_path": "a.md"}))
	tt.feed(toolUse("A", "Write", map[string]interface{}{"content": "body"}))

	require.Len(t, tt.msg.ToolCalls, 1)
	require.Len(t, tt.msg.Blocks, 1)
	assert.Equal(t, "body", tt.msg.ToolCalls[0].Input["content"])
	assert.Equal(t, "a.md", tt.msg.ToolCalls[0].Input["file_path"])
	// still buffered, so no label update
	assert.Empty(t, tt.renderer.Calls())

	tt.feed(text("x"), toolUse("A", "Write", map[string]interface{}{"content": "body2"}))
	assert.Contains(t, tt.renderer.Calls(), "label A")
	assert.Equal(t, 0, tt.coordinator.State().Pending().Len())
	assert.Equal(t, "body2", tt.msg.ToolCalls[0].Input["content"])
}

func TestToolResultStatuses(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(
		toolUse("ok", "Read", nil),
		toolUse("err", "Read", nil),
		toolUse("blocked", "Bash", nil),
		toolUse("exempt", "AskUserQuestion", nil),
		toolResult("ok", "fine", false),
		toolResult("err", "no such file", true),
		toolResult("blocked", "User denied this action.", false),
		toolResult("exempt", "User denied this action.", false),
	)
	assert.Equal(t, turns.ToolCallStatusCompleted, tt.msg.FindToolCall("ok").Status)
	assert.Equal(t, turns.ToolCallStatusError, tt.msg.FindToolCall("err").Status)
	assert.Equal(t, turns.ToolCallStatusBlocked, tt.msg.FindToolCall("blocked").Status)
	assert.Equal(t, turns.ToolCallStatusCompleted, tt.msg.FindToolCall("exempt").Status)
}

func TestRogueAndDuplicateToolResultsAreIgnored(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(toolResult("nope", "x", false))
	assert.Empty(t, tt.renderer.Calls())

	tt.feed(toolUse("A", "Read", nil), toolResult("A", "first", false), toolResult("A", "second", true))
	call := tt.msg.FindToolCall("A")
	assert.Equal(t, "first", call.Result)
	assert.Equal(t, turns.ToolCallStatusCompleted, call.Status)
	assert.Len(t, tt.renderer.CallsWithPrefix("finalize-tool"), 1)
}

func TestUsageGating(t *testing.T) {
	tt := newTestTurn(t)

	tt.feed(usage(100, 1000, ""))
	require.NotNil(t, tt.coordinator.State().Usage)
	assert.Equal(t, 10, tt.coordinator.State().Usage.Percentage)

	tt.feed(usage(500, 1000, "other-session"))
	assert.Equal(t, 10, tt.coordinator.State().Usage.Percentage)

	tt.feed(usage(200, 1000, "session-1"))
	assert.Equal(t, 20, tt.coordinator.State().Usage.Percentage)
	assert.Equal(t, 20, tt.msg.Usage.Percentage)

	tt.coordinator.State().IgnoreUsage = true
	tt.feed(usage(300, 1000, ""))
	assert.Equal(t, 20, tt.coordinator.State().Usage.Percentage)

	assert.Equal(t, []string{"usage 10", "usage 20"}, tt.renderer.Calls())
}

func TestUsageReplacedWholesale(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(events.NewUsageEvent(meta(), events.Usage{Model: "a", InputTokens: 10, CacheReadInputTokens: 90, ContextWindow: 1000}, ""))
	tt.feed(events.NewUsageEvent(meta(), events.Usage{Model: "b", InputTokens: 50, ContextWindow: 1000}, ""))

	u := tt.coordinator.State().Usage
	assert.Equal(t, "b", u.Model)
	assert.Equal(t, 0, u.CacheReadInputTokens)
	assert.Equal(t, 50, u.ContextTokens)
}

func TestUsageIgnoredOnceSubagentSpawned(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(toolUse("task", "Task", map[string]interface{}{"description": "d", "prompt": "p"}))
	tt.feed(usage(100, 1000, ""))
	assert.Nil(t, tt.coordinator.State().Usage)
}

func TestErrorAndBlockedAppendMarkers(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(thinking("hmm"), toolUse("A", "Read", nil), text("partial"))
	tt.feed(events.NewErrorEvent(meta(), "rate limited"))
	tt.feed(toolUse("B", "Bash", nil), events.NewBlockedEvent(meta(), "rm -rf /"), done())

	assert.Contains(t, tt.msg.Content, "partial")
	assert.Contains(t, tt.msg.Content, "**Error:** rate limited")
	assert.Contains(t, tt.msg.Content, "**Blocked:** rm -rf /")
	assert.Equal(t, []turns.BlockKind{
		turns.BlockKindThinking,
		turns.BlockKindToolUse,
		turns.BlockKindText,
		turns.BlockKindToolUse,
		turns.BlockKindText,
	}, blockKinds(tt.msg))
	// the buffered tool was rendered before the marker text
	calls := tt.renderer.Calls()
	assert.Less(t, indexOf(calls, "tool B"), lastIndexOf(calls, "open-text"))
	assert.Equal(t, 0, tt.coordinator.State().Pending().Len())
}

func TestRenderFailureBecomesPlaceholder(t *testing.T) {
	tt := newTestTurn(t)
	tt.renderer.failRender = true
	tt.feed(text("**broken"), done())

	assert.Contains(t, tt.renderer.Calls(), "placeholder bad markdown")
	assert.Equal(t, "**broken", tt.msg.Content)
	require.Len(t, tt.msg.Blocks, 1)
}

func TestRendererPanicIsContained(t *testing.T) {
	tt := newTestTurn(t)
	tt.renderer.panicOn = "tool A"
	require.NotPanics(t, func() {
		tt.feed(toolUse("A", "Read", nil), text("x"), toolResult("A", "ok", false), done())
	})
	assert.Equal(t, turns.ToolCallStatusCompleted, tt.msg.FindToolCall("A").Status)
	assert.Equal(t, "x", tt.msg.Content)
}

func TestResetDropsBufferedCallsWithoutRendering(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(toolUse("A", "Read", nil), toolUse("B", "Write", nil))
	tt.coordinator.Reset()

	assert.Equal(t, 0, tt.coordinator.State().Pending().Len())
	assert.Empty(t, tt.renderer.Calls())
	assert.Nil(t, tt.coordinator.State().Message)
}

func TestFinishWithoutDone(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(text("half"), toolUse("A", "Read", nil))
	tt.finish(FinishOptions{Err: errors.New("stream broke")})

	assert.Contains(t, tt.msg.Content, "**Error:** stream broke")
	assert.Equal(t, []turns.BlockKind{turns.BlockKindText, turns.BlockKindToolUse, turns.BlockKindText}, blockKinds(tt.msg))
	assert.Contains(t, tt.renderer.Calls(), "tool A")
	assert.Greater(t, tt.msg.DurationSeconds, 0.0)
	assert.False(t, tt.coordinator.State().HasOpenSpan())
}

func TestFinishInterrupted(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(thinking("deep"))
	tt.finish(FinishOptions{Interrupted: true})

	assert.True(t, tt.msg.Interrupted)
	assert.Contains(t, tt.msg.Content, "Interrupted")
	assert.Equal(t, []turns.BlockKind{turns.BlockKindThinking, turns.BlockKindText}, blockKinds(tt.msg))
}

func TestFinishAfterDoneAddsNothing(t *testing.T) {
	tt := newTestTurn(t)
	tt.feed(text("a"), done())
	before := len(tt.renderer.Calls())
	tt.finish(FinishOptions{})
	assert.Len(t, tt.renderer.Calls(), before)
	assert.Len(t, tt.msg.Blocks, 1)
}

func TestClockDrivesDurations(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tt := newTestTurn(t, WithClock(clock))
	tt.coordinator.BeginTurn(tt.msg, "container")

	tt.feed(thinking("a"))
	now = now.Add(3 * time.Second)
	tt.feed(text("b"))
	now = now.Add(2 * time.Second)
	tt.finish(FinishOptions{})

	assert.Equal(t, 3.0, tt.msg.Blocks[0].DurationSeconds)
	assert.Equal(t, 5.0, tt.msg.DurationSeconds)
}

func TestNewCoordinatorRequiresRenderer(t *testing.T) {
	_, err := NewCoordinator(nil, nil)
	require.Error(t, err)

	c, err := NewCoordinator(&recordingRenderer{}, nil)
	require.NoError(t, err)
	c.Handle(context.Background(), text("no turn"), turns.NewMessage())
}

func lastIndexOf(list []string, s string) int {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == s {
			return i
		}
	}
	return -1
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
