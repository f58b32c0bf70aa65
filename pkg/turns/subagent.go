package turns

type SubagentStatus string

const (
	SubagentStatusPending   SubagentStatus = "pending"
	SubagentStatusRunning   SubagentStatus = "running"
	SubagentStatusCompleted SubagentStatus = "completed"
	SubagentStatusError     SubagentStatus = "error"
	// SubagentStatusOrphaned marks a background launch whose turn ended before the
	// launch was confirmed.
	SubagentStatusOrphaned SubagentStatus = "orphaned"
)

// IsTerminal reports whether no further lifecycle change is expected. Orphaned records
// are not terminal: a late update may still resolve them.
func (s SubagentStatus) IsTerminal() bool {
	return s == SubagentStatusCompleted || s == SubagentStatusError
}

func (s SubagentStatus) IsValid() bool {
	switch s {
	case SubagentStatusPending, SubagentStatusRunning, SubagentStatusCompleted, SubagentStatusError, SubagentStatusOrphaned:
		return true
	}
	return false
}

type SubagentMode string

const (
	SubagentModeSync  SubagentMode = "sync"
	SubagentModeAsync SubagentMode = "async"
)

// SubagentRecord tracks a nested agent execution started by a tool invocation. ID is
// the id of that invocation.
type SubagentRecord struct {
	ID           string         `yaml:"id" json:"id"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	SubagentType string         `yaml:"subagent_type,omitempty" json:"subagentType,omitempty"`
	Prompt       string         `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Status       SubagentStatus `yaml:"status" json:"status"`
	Mode         SubagentMode   `yaml:"mode,omitempty" json:"mode,omitempty"`
	// AgentID is the background agent id reported by an async launch.
	AgentID   string      `yaml:"agent_id,omitempty" json:"agentId,omitempty"`
	ToolCalls []*ToolCall `yaml:"tool_calls,omitempty" json:"toolCalls,omitempty"`
	Result    string      `yaml:"result,omitempty" json:"result,omitempty"`
}

func (r *SubagentRecord) FindToolCall(id string) *ToolCall {
	for _, c := range r.ToolCalls {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// SubagentUpdate is an out-of-band lifecycle change for a background subagent.
// Empty fields leave the record untouched.
type SubagentUpdate struct {
	ID          string         `yaml:"id" json:"id"`
	Status      SubagentStatus `yaml:"status,omitempty" json:"status,omitempty"`
	AgentID     string         `yaml:"agent_id,omitempty" json:"agentId,omitempty"`
	Result      string         `yaml:"result,omitempty" json:"result,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
}

// ApplyUpdate mutates the record in place and reports whether anything changed.
// Records already completed or failed keep their status and result.
func (r *SubagentRecord) ApplyUpdate(u SubagentUpdate) bool {
	changed := false
	if u.Description != "" && u.Description != r.Description {
		r.Description = u.Description
		changed = true
	}
	if r.Status.IsTerminal() {
		return changed
	}
	if u.AgentID != "" && u.AgentID != r.AgentID {
		r.AgentID = u.AgentID
		changed = true
	}
	if u.Status != "" && u.Status.IsValid() && u.Status != r.Status {
		r.Status = u.Status
		changed = true
	}
	if u.Result != "" && u.Result != r.Result {
		r.Result = u.Result
		changed = true
	}
	return changed
}
