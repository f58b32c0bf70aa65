package stream

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// PendingTools holds tool calls that have been announced but not rendered yet, in
// arrival order. A call leaves the buffer exactly once.
type PendingTools struct {
	calls *orderedmap.OrderedMap[string, *turns.ToolCall]
}

func NewPendingTools() *PendingTools {
	return &PendingTools{
		calls: orderedmap.New[string, *turns.ToolCall](),
	}
}

// Add buffers call unless its id is already pending.
func (p *PendingTools) Add(call *turns.ToolCall) bool {
	if call == nil || call.ID == "" {
		return false
	}
	if _, ok := p.calls.Get(call.ID); ok {
		return false
	}
	p.calls.Set(call.ID, call)
	return true
}

func (p *PendingTools) Has(id string) bool {
	_, ok := p.calls.Get(id)
	return ok
}

// Take removes and returns a single pending call.
func (p *PendingTools) Take(id string) (*turns.ToolCall, bool) {
	call, ok := p.calls.Delete(id)
	return call, ok
}

// Drain removes and returns every pending call in insertion order.
func (p *PendingTools) Drain() []*turns.ToolCall {
	if p.calls.Len() == 0 {
		return nil
	}
	out := make([]*turns.ToolCall, 0, p.calls.Len())
	for pair := p.calls.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	p.calls = orderedmap.New[string, *turns.ToolCall]()
	return out
}

// Clear drops every pending call without rendering it.
func (p *PendingTools) Clear() {
	p.calls = orderedmap.New[string, *turns.ToolCall]()
}

func (p *PendingTools) Len() int {
	return p.calls.Len()
}

func (p *PendingTools) IDs() []string {
	ids := make([]string, 0, p.calls.Len())
	for pair := p.calls.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}
