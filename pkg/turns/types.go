package turns

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// BlockKind tags a ContentBlock.
type BlockKind string

const (
	BlockKindText     BlockKind = "text"
	BlockKindThinking BlockKind = "thinking"
	BlockKindToolUse  BlockKind = "tool_use"
	BlockKindSubagent BlockKind = "subagent"
)

// ContentBlock is one entry of a message's ordered presentation sequence. Which fields
// are set depends on Kind: Content for text and thinking, ToolID for tool_use,
// SubagentID and Mode for subagent.
type ContentBlock struct {
	Kind       BlockKind    `yaml:"kind" json:"kind"`
	Content    string       `yaml:"content,omitempty" json:"content,omitempty"`
	ToolID     string       `yaml:"tool_id,omitempty" json:"toolId,omitempty"`
	SubagentID string       `yaml:"subagent_id,omitempty" json:"subagentId,omitempty"`
	Mode       SubagentMode `yaml:"mode,omitempty" json:"mode,omitempty"`
	// DurationSeconds is how long a thinking span stayed open.
	DurationSeconds float64 `yaml:"duration_seconds,omitempty" json:"durationSeconds,omitempty"`
}

func NewTextBlock(content string) ContentBlock {
	return ContentBlock{Kind: BlockKindText, Content: content}
}

func NewThinkingBlock(content string, elapsed time.Duration) ContentBlock {
	return ContentBlock{Kind: BlockKindThinking, Content: content, DurationSeconds: elapsed.Seconds()}
}

func NewToolUseBlock(toolID string) ContentBlock {
	return ContentBlock{Kind: BlockKindToolUse, ToolID: toolID}
}

// NewSubagentBlock references a subagent record. Only async invocations carry a mode.
func NewSubagentBlock(subagentID string, mode SubagentMode) ContentBlock {
	b := ContentBlock{Kind: BlockKindSubagent, SubagentID: subagentID}
	if mode == SubagentModeAsync {
		b.Mode = mode
	}
	return b
}

// Message is the assistant message assembled over one turn.
type Message struct {
	ID   string `yaml:"id" json:"id"`
	Role string `yaml:"role" json:"role"`
	// Content accumulates every piece of top-level text, including marker lines.
	Content   string            `yaml:"content,omitempty" json:"content,omitempty"`
	Blocks    []ContentBlock    `yaml:"blocks,omitempty" json:"blocks,omitempty"`
	ToolCalls []*ToolCall       `yaml:"tool_calls,omitempty" json:"toolCalls,omitempty"`
	Subagents []*SubagentRecord `yaml:"subagents,omitempty" json:"subagents,omitempty"`

	DurationSeconds float64        `yaml:"duration_seconds,omitempty" json:"durationSeconds,omitempty"`
	Usage           *UsageSnapshot `yaml:"usage,omitempty" json:"usage,omitempty"`
	Interrupted     bool           `yaml:"interrupted,omitempty" json:"interrupted,omitempty"`
	CreatedAt       time.Time      `yaml:"created_at" json:"createdAt"`
}

// NewMessage creates an empty assistant message with a fresh id.
func NewMessage() *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
	}
}

// FindToolCall returns the top-level tool call with the given id.
func (m *Message) FindToolCall(id string) *ToolCall {
	if m == nil {
		return nil
	}
	for _, c := range m.ToolCalls {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// FindSubagent returns the subagent record with the given invocation id.
func (m *Message) FindSubagent(id string) *SubagentRecord {
	if m == nil {
		return nil
	}
	for _, r := range m.Subagents {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// BlocksOfKind returns the blocks of the given kinds, in order.
func (m *Message) BlocksOfKind(kinds ...BlockKind) []ContentBlock {
	lookup := map[BlockKind]bool{}
	for _, k := range kinds {
		lookup[k] = true
	}
	ret := make([]ContentBlock, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		if lookup[b.Kind] {
			ret = append(ret, b)
		}
	}
	return ret
}

type ToolCallStatus string

const (
	ToolCallStatusRunning   ToolCallStatus = "running"
	ToolCallStatusCompleted ToolCallStatus = "completed"
	ToolCallStatusError     ToolCallStatus = "error"
	ToolCallStatusBlocked   ToolCallStatus = "blocked"
)

// ToolCall is a tool invocation seen in the stream.
type ToolCall struct {
	ID     string                 `yaml:"id" json:"id"`
	Name   string                 `yaml:"name" json:"name"`
	Input  map[string]interface{} `yaml:"input,omitempty" json:"input,omitempty"`
	Status ToolCallStatus         `yaml:"status" json:"status"`
	Result string                 `yaml:"result,omitempty" json:"result,omitempty"`
}

func NewToolCall(id string, name string, input map[string]interface{}) *ToolCall {
	c := &ToolCall{
		ID:     id,
		Name:   name,
		Status: ToolCallStatusRunning,
	}
	c.MergeInput(input)
	return c
}

// MergeInput copies the given keys into the call input, overwriting existing ones.
// It reports whether anything changed.
func (c *ToolCall) MergeInput(input map[string]interface{}) bool {
	if len(input) == 0 {
		return false
	}
	if c.Input == nil {
		c.Input = make(map[string]interface{}, len(input))
	}
	for k, v := range input {
		c.Input[k] = v
	}
	return true
}

// InputString returns a string input value, or "" when absent or not a string.
func (c *ToolCall) InputString(key string) string {
	if c == nil || c.Input == nil {
		return ""
	}
	s, _ := c.Input[key].(string)
	return s
}

func (c *ToolCall) IsFinished() bool {
	return c.Status != ToolCallStatusRunning
}
