package session

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnweaver/pkg/events"
)

func TestSliceSource(t *testing.T) {
	src := NewSliceSource(events.NewTextEvent(md(), "a"), events.NewDoneEvent(md()))
	ctx := context.Background()

	e, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeText, e.Type())
	e, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeDone, e.Type())
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewSliceSource(events.NewDoneEvent(md())).Next(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelSource(t *testing.T) {
	ch := make(chan events.Event, 1)
	src := NewChannelSource(ch)
	ch <- events.NewTextEvent(md(), "a")

	e, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", e.(*events.EventText).Content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(ch)
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

const replay = `{"type":"text","content":"Hi"}

{"type":"tool_use","id":"t1","name":"Read","input":{"file_path":"a.go"}}
{"type":"tool_result","id":"t1","content":"package a","isError":false}
{"type":"done"}
`

func TestJSONLSource(t *testing.T) {
	src := NewJSONLSource(strings.NewReader(replay))
	var types []events.EventType
	for {
		e, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		types = append(types, e.Type())
	}
	assert.Equal(t, []events.EventType{
		events.EventTypeText,
		events.EventTypeToolUse,
		events.EventTypeToolResult,
		events.EventTypeDone,
	}, types)
}

func TestJSONLSource_BadLine(t *testing.T) {
	src := NewJSONLSource(strings.NewReader("{\"type\":\"text\",\"content\":\"ok\"}\nnot json\n"))
	_, err := src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestJSONLSource_Validator(t *testing.T) {
	v, err := events.NewValidator()
	require.NoError(t, err)

	src := NewJSONLSource(strings.NewReader(`{"type":"tool_use","name":"Read"}`+"\n"), WithValidator(v))
	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	src = NewJSONLSource(strings.NewReader(replay), WithValidator(v))
	e, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeText, e.Type())
}

func TestJSONLSource_DrivesSession(t *testing.T) {
	s, out := newTestSession(t)
	h, err := s.StartTurn(context.Background(), NewJSONLSource(strings.NewReader(replay)), nil)
	require.NoError(t, err)
	msg, err := h.Wait()
	require.NoError(t, err)

	assert.Equal(t, "Hi", msg.Content)
	call := msg.FindToolCall("t1")
	require.NotNil(t, call)
	assert.Equal(t, "package a", call.Result)
	assert.Contains(t, out.String(), "● Read a.go")
}
