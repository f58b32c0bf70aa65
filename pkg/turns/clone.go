package turns

import (
	"github.com/huandu/go-clone"
)

// Clone returns a deep copy of the message, including tool call inputs and subagent
// records, suitable for mutation without affecting the original.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	return clone.Clone(m).(*Message)
}

func (u *UsageSnapshot) Clone() *UsageSnapshot {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
