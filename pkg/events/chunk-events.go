package events

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

type EventType string

const (
	EventTypeText       EventType = "text"
	EventTypeThinking   EventType = "thinking"
	EventTypeToolUse    EventType = "tool_use"
	EventTypeToolResult EventType = "tool_result"
	EventTypeUsage      EventType = "usage"
	EventTypeError      EventType = "error"
	EventTypeBlocked    EventType = "blocked"
	EventTypeDone       EventType = "done"

	// Out-of-band lifecycle updates for background subagents, delivered over the bus
	// rather than the chunk stream.
	EventTypeSubagentState EventType = "subagent_state"
)

// Event is a single chunk of an agent turn.
type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
	// ParentID returns the tool invocation id that owns this chunk, or "" for
	// top-level chunks.
	ParentID() string
}

type EventImpl struct {
	Type_           EventType     `json:"type"`
	ParentToolUseID string        `json:"parentToolUseId,omitempty"`
	Metadata_       EventMetadata `json:"meta,omitempty"`

	// raw JSON when the event was decoded by NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	if e.ParentToolUseID != "" {
		ev.Str("parent_tool_use_id", e.ParentToolUseID)
	}
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) ParentID() string {
	return e.ParentToolUseID
}

// SetPayload stores the raw JSON payload on the event implementation.
// This is used by NewEventFromJson and external decoders.
func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

// SetParentID marks the event as belonging to the nested execution started by the
// tool invocation with the given id.
func (e *EventImpl) SetParentID(id string) {
	e.ParentToolUseID = id
}

type EventText struct {
	EventImpl
	Content string `json:"content"`
}

func NewTextEvent(metadata EventMetadata, content string) *EventText {
	return &EventText{
		EventImpl: EventImpl{Type_: EventTypeText, Metadata_: metadata},
		Content:   content,
	}
}

var _ Event = &EventText{}

type EventThinking struct {
	EventImpl
	Content string `json:"content"`
}

func NewThinkingEvent(metadata EventMetadata, content string) *EventThinking {
	return &EventThinking{
		EventImpl: EventImpl{Type_: EventTypeThinking, Metadata_: metadata},
		Content:   content,
	}
}

var _ Event = &EventThinking{}

// EventToolUse announces a tool invocation. The same id may be sent more than once
// while the input is still streaming; later chunks carry additional input keys.
type EventToolUse struct {
	EventImpl
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input,omitempty"`
}

func NewToolUseEvent(metadata EventMetadata, id string, name string, input map[string]interface{}) *EventToolUse {
	return &EventToolUse{
		EventImpl: EventImpl{Type_: EventTypeToolUse, Metadata_: metadata},
		ID:        id,
		Name:      name,
		Input:     input,
	}
}

var _ Event = &EventToolUse{}

type EventToolResult struct {
	EventImpl
	ID      string `json:"id"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

func NewToolResultEvent(metadata EventMetadata, id string, content string, isError bool) *EventToolResult {
	return &EventToolResult{
		EventImpl: EventImpl{Type_: EventTypeToolResult, Metadata_: metadata},
		ID:        id,
		Content:   content,
		IsError:   isError,
	}
}

var _ Event = &EventToolResult{}

type EventUsage struct {
	EventImpl
	Usage     Usage  `json:"usage"`
	SessionID string `json:"sessionId,omitempty"`
}

func NewUsageEvent(metadata EventMetadata, usage Usage, sessionID string) *EventUsage {
	return &EventUsage{
		EventImpl: EventImpl{Type_: EventTypeUsage, Metadata_: metadata},
		Usage:     usage,
		SessionID: sessionID,
	}
}

var _ Event = &EventUsage{}

type EventError struct {
	EventImpl
	Content string `json:"content"`
}

func NewErrorEvent(metadata EventMetadata, content string) *EventError {
	return &EventError{
		EventImpl: EventImpl{Type_: EventTypeError, Metadata_: metadata},
		Content:   content,
	}
}

var _ Event = &EventError{}

type EventBlocked struct {
	EventImpl
	Content string `json:"content"`
}

func NewBlockedEvent(metadata EventMetadata, content string) *EventBlocked {
	return &EventBlocked{
		EventImpl: EventImpl{Type_: EventTypeBlocked, Metadata_: metadata},
		Content:   content,
	}
}

var _ Event = &EventBlocked{}

type EventDone struct {
	EventImpl
}

func NewDoneEvent(metadata EventMetadata) *EventDone {
	return &EventDone{
		EventImpl: EventImpl{Type_: EventTypeDone, Metadata_: metadata},
	}
}

var _ Event = &EventDone{}

// EventSubagentState reports a lifecycle change of a background subagent, identified
// by the tool invocation id that launched it. Empty fields leave the record untouched.
type EventSubagentState struct {
	EventImpl
	ID          string `json:"id"`
	Status      string `json:"status"`
	AgentID     string `json:"agentId,omitempty"`
	Result      string `json:"result,omitempty"`
	Description string `json:"description,omitempty"`
}

func NewSubagentStateEvent(metadata EventMetadata, id string, status string, result string) *EventSubagentState {
	return &EventSubagentState{
		EventImpl: EventImpl{Type_: EventTypeSubagentState, Metadata_: metadata},
		ID:        id,
		Status:    status,
		Result:    result,
	}
}

var _ Event = &EventSubagentState{}

// NewEventFromJson decodes a single chunk through the chunk type registry.
func NewEventFromJson(b []byte) (Event, error) {
	if !gjson.ValidBytes(b) {
		return nil, errors.New("invalid chunk JSON")
	}
	typeName := gjson.GetBytes(b, "type").String()
	if typeName == "" {
		return nil, errors.New("chunk has no type")
	}

	dec := lookupDecoder(EventType(typeName))
	if dec == nil {
		return nil, errors.Errorf("unknown chunk type %q", typeName)
	}
	ev, err := dec(b)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode %s chunk", typeName)
	}
	return ev, nil
}
