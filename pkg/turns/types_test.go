package turns

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCallMergeInput(t *testing.T) {
	c := NewToolCall("t1", "Write", map[string]interface{}{"file_path": "a.md"})
	require.Equal(t, ToolCallStatusRunning, c.Status)

	assert.False(t, c.MergeInput(nil))
	assert.True(t, c.MergeInput(map[string]interface{}{"content": "hello", "file_path": "b.md"}))
	assert.Equal(t, "b.md", c.InputString("file_path"))
	assert.Equal(t, "hello", c.InputString("content"))
	assert.Equal(t, "", c.InputString("missing"))
}

func TestSubagentBlockOnlyCarriesAsyncMode(t *testing.T) {
	assert.Equal(t, SubagentMode(""), NewSubagentBlock("a", SubagentModeSync).Mode)
	assert.Equal(t, SubagentModeAsync, NewSubagentBlock("a", SubagentModeAsync).Mode)
}

func TestUsageSnapshotDerivesPercentage(t *testing.T) {
	u := NewUsageSnapshot("m", 1000, 500, 500, 10000)
	assert.Equal(t, 2000, u.ContextTokens)
	assert.Equal(t, 20, u.Percentage)

	assert.Equal(t, 100, NewUsageSnapshot("m", 50000, 0, 0, 1000).Percentage)
	assert.Equal(t, 0, NewUsageSnapshot("m", 50, 0, 0, 0).Percentage)
}

func TestSubagentApplyUpdate(t *testing.T) {
	r := &SubagentRecord{ID: "task", Status: SubagentStatusRunning, Mode: SubagentModeAsync}

	assert.False(t, r.ApplyUpdate(SubagentUpdate{ID: "task"}))
	assert.False(t, r.ApplyUpdate(SubagentUpdate{ID: "task", Status: "bogus"}))
	assert.True(t, r.ApplyUpdate(SubagentUpdate{ID: "task", Status: SubagentStatusCompleted, Result: "done"}))
	assert.Equal(t, SubagentStatusCompleted, r.Status)
	assert.Equal(t, "done", r.Result)

	// completed records keep their outcome
	assert.False(t, r.ApplyUpdate(SubagentUpdate{ID: "task", Status: SubagentStatusError, Result: "late"}))
	assert.Equal(t, "done", r.Result)
	assert.True(t, r.ApplyUpdate(SubagentUpdate{ID: "task", Description: "renamed"}))

	o := &SubagentRecord{ID: "bg", Status: SubagentStatusOrphaned}
	assert.True(t, o.ApplyUpdate(SubagentUpdate{ID: "bg", Status: SubagentStatusCompleted}))
}

func TestMessageCloneIsDeep(t *testing.T) {
	m := NewMessage()
	m.ToolCalls = append(m.ToolCalls, NewToolCall("t1", "Read", map[string]interface{}{"file_path": "x"}))
	m.Subagents = append(m.Subagents, &SubagentRecord{ID: "s1", Status: SubagentStatusRunning})
	m.Usage = NewUsageSnapshot("m", 1, 2, 3, 100)

	cp := m.Clone()
	cp.ToolCalls[0].Input["file_path"] = "y"
	cp.Subagents[0].Status = SubagentStatusCompleted
	cp.Usage.InputTokens = 99

	assert.Equal(t, "x", m.ToolCalls[0].Input["file_path"])
	assert.Equal(t, SubagentStatusRunning, m.Subagents[0].Status)
	assert.Equal(t, 1, m.Usage.InputTokens)
	assert.Equal(t, m.ID, cp.ID)
}

func TestPrettyPrinter(t *testing.T) {
	m := NewMessage()
	call := NewToolCall("t1", "Read", map[string]interface{}{"file_path": "notes.md"})
	call.Status = ToolCallStatusCompleted
	call.Result = "line one\nline two"
	m.ToolCalls = []*ToolCall{call}
	m.Subagents = []*SubagentRecord{{
		ID: "s1", Description: "Explore", Status: SubagentStatusRunning, Mode: SubagentModeSync,
		ToolCalls: []*ToolCall{NewToolCall("n1", "Grep", nil)},
	}}
	m.Blocks = []ContentBlock{
		NewThinkingBlock("pondering", 2*time.Second),
		NewTextBlock("hello"),
		NewToolUseBlock("t1"),
		NewSubagentBlock("s1", SubagentModeSync),
		NewToolUseBlock("gone"),
	}
	m.Usage = NewUsageSnapshot("opus", 10, 0, 0, 100)

	var buf bytes.Buffer
	FprintfMessage(&buf, m, WithMaxTextLines(1))
	out := buf.String()
	assert.Contains(t, out, "thinking (2.0s): pondering")
	assert.Contains(t, out, "text: hello")
	assert.Contains(t, out, "tool_use: Read [completed]")
	assert.Contains(t, out, "result: line one\n")
	assert.NotContains(t, out, "line two")
	assert.Contains(t, out, "subagent: Explore [sync, running]")
	assert.Contains(t, out, "tool_use: Grep [running]")
	assert.Contains(t, out, "tool_use: id=gone <missing>")
	assert.Contains(t, out, "usage: 10/100 tokens (10%) model=opus")
}

func TestComputeStats(t *testing.T) {
	m := NewMessage()
	m.Content = "hello world"
	m.Blocks = []ContentBlock{NewThinkingBlock("let me think", time.Second), NewTextBlock("hello world"), NewToolUseBlock("t1")}
	m.ToolCalls = []*ToolCall{{ID: "t1", Name: "Bash", Status: ToolCallStatusBlocked}}
	m.Subagents = []*SubagentRecord{{ID: "s", Status: SubagentStatusCompleted, ToolCalls: []*ToolCall{{ID: "n"}}}}

	s, err := ComputeStats(m, "")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Blocks[BlockKindText])
	assert.Equal(t, 1, s.Blocks[BlockKindThinking])
	assert.Equal(t, 1, s.ToolCalls[ToolCallStatusBlocked])
	assert.Equal(t, 1, s.Subagents[SubagentStatusCompleted])
	assert.Equal(t, 1, s.NestedTools)
	assert.Greater(t, s.ContentTokens, 0)
	assert.Greater(t, s.ThinkingTokens, 0)
}
