package conversation

// Package conversation keeps the append-only message history of a session.
//
// Messages are appended once their turn has finished. Background subagents may keep
// reporting afterwards, so updates are routed to whichever message owns the
// subagent record. The history can be saved to and loaded from YAML.

import (
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// Manager defines the operations a session needs on its history.
type Manager interface {
	Append(msgs ...*turns.Message)
	Messages() []*turns.Message
	Latest() *turns.Message
	FindSubagent(id string) (*turns.Message, *turns.SubagentRecord)
	ApplySubagentUpdate(u turns.SubagentUpdate) bool
	SaveToFile(path string) error
}
