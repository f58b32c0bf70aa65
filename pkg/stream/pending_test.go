package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

func TestPendingToolsKeepsInsertionOrder(t *testing.T) {
	p := NewPendingTools()
	require.True(t, p.Add(turns.NewToolCall("c", "Read", nil)))
	require.True(t, p.Add(turns.NewToolCall("a", "Write", nil)))
	require.True(t, p.Add(turns.NewToolCall("b", "Bash", nil)))
	require.False(t, p.Add(turns.NewToolCall("a", "Write", nil)))
	require.False(t, p.Add(nil))

	assert.Equal(t, []string{"c", "a", "b"}, p.IDs())
	assert.True(t, p.Has("a"))

	call, ok := p.Take("a")
	require.True(t, ok)
	assert.Equal(t, "Write", call.Name)
	_, ok = p.Take("a")
	assert.False(t, ok)

	drained := p.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "c", drained[0].ID)
	assert.Equal(t, "b", drained[1].ID)
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Drain())
}

func TestPendingToolsClear(t *testing.T) {
	p := NewPendingTools()
	p.Add(turns.NewToolCall("a", "Read", nil))
	p.Clear()
	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Has("a"))
}

func TestHandleRegistry(t *testing.T) {
	r := NewHandleRegistry()
	r.Set("a", "h-a", false)
	r.Set("b", "h-b", true)
	r.Set("a", "h-a2", false)

	h, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "h-a2", h)
	assert.True(t, r.IsWriteEdit("b"))
	assert.False(t, r.IsWriteEdit("a"))
	assert.False(t, r.IsWriteEdit("zzz"))
	assert.Equal(t, []string{"a", "b"}, r.IDs())

	r.Reset()
	_, ok = r.Get("a")
	assert.False(t, ok)
	assert.Empty(t, r.IDs())
}

func TestBlockedDetector(t *testing.T) {
	d := NewBlockedDetector(
		toolMatcher("AskUserQuestion", "ExitPlanMode"),
		[]string{"Blocked by blocklist", "outside the vault"},
		[]string{"deny"},
	)

	assert.Equal(t, turns.ToolCallStatusBlocked, d.Status("Bash", "Command BLOCKED BY BLOCKLIST: rm", false))
	assert.Equal(t, turns.ToolCallStatusBlocked, d.Status("Read", "path is outside the vault", true))
	assert.Equal(t, turns.ToolCallStatusError, d.Status("Read", "no such file", true))
	assert.Equal(t, turns.ToolCallStatusCompleted, d.Status("Read", "the user may deny this later", false))
	assert.Equal(t, turns.ToolCallStatusBlocked, d.Status("Read", "permission deny", true))

	// exempt tools only look at the error flag
	assert.Equal(t, turns.ToolCallStatusCompleted, d.Status("ExitPlanMode", "blocked by blocklist", false))
	assert.Equal(t, turns.ToolCallStatusError, d.Status("AskUserQuestion", "user said deny", true))
}
