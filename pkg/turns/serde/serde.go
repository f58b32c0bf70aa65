package serde

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// Options controls serialization behavior.
type Options struct {
	// OmitToolDetail drops tool inputs and results on write
	OmitToolDetail bool
}

// Document is the on-disk form of a conversation.
type Document struct {
	ConversationID string           `yaml:"conversation_id,omitempty"`
	SessionID      string           `yaml:"session_id,omitempty"`
	Messages       []*turns.Message `yaml:"messages"`
}

// NormalizeMessage applies serde defaults (best-effort) without mutating order.
func NormalizeMessage(m *turns.Message) {
	if m == nil {
		return
	}
	if strings.TrimSpace(m.Role) == "" {
		m.Role = turns.RoleAssistant
	}
	for _, c := range m.ToolCalls {
		if c.Status == "" {
			c.Status = turns.ToolCallStatusRunning
		}
	}
	for _, r := range m.Subagents {
		if r.Status == "" {
			r.Status = turns.SubagentStatusPending
		}
		if r.Mode == "" {
			r.Mode = turns.SubagentModeSync
		}
	}
}

func stripToolDetail(m *turns.Message) {
	strip := func(calls []*turns.ToolCall) {
		for _, c := range calls {
			c.Input = nil
			c.Result = ""
		}
	}
	strip(m.ToolCalls)
	for _, r := range m.Subagents {
		strip(r.ToolCalls)
	}
}

// ToYAML marshals a Message to YAML.
func ToYAML(m *turns.Message, opt Options) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	snapshot := m.Clone()
	if opt.OmitToolDetail {
		stripToolDetail(snapshot)
	}
	NormalizeMessage(snapshot)
	return yaml.Marshal(snapshot)
}

// FromYAML unmarshals a Message from YAML.
func FromYAML(b []byte) (*turns.Message, error) {
	var m turns.Message
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	NormalizeMessage(&m)
	return &m, nil
}

// DocumentToYAML marshals a whole conversation.
func DocumentToYAML(d *Document, opt Options) ([]byte, error) {
	out := &Document{
		ConversationID: d.ConversationID,
		SessionID:      d.SessionID,
		Messages:       make([]*turns.Message, 0, len(d.Messages)),
	}
	for _, m := range d.Messages {
		cp := m.Clone()
		if opt.OmitToolDetail {
			stripToolDetail(cp)
		}
		NormalizeMessage(cp)
		out.Messages = append(out.Messages, cp)
	}
	return yaml.Marshal(out)
}

func DocumentFromYAML(b []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	for _, m := range d.Messages {
		NormalizeMessage(m)
	}
	return &d, nil
}

// SaveDocumentYAML writes a conversation to a YAML file.
func SaveDocumentYAML(path string, d *Document, opt Options) error {
	data, err := DocumentToYAML(d, opt)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "could not write %s", path)
}

// LoadDocumentYAML reads a conversation from a YAML file.
func LoadDocumentYAML(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := DocumentFromYAML(b)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", path)
	}
	return d, nil
}
