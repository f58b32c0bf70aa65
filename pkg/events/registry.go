package events

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// EventCodec decodes a raw chunk into a concrete Event.
type EventCodec func([]byte) (Event, error)

// chunkRegistry maps chunk type names to their decoders. Built-in chunk types are
// registered at init, so every decode goes through the same lookup.
type chunkRegistry struct {
	mu        sync.RWMutex
	decoders  map[EventType]EventCodec
	factories map[EventType]func() Event
}

var registry = &chunkRegistry{
	decoders:  map[EventType]EventCodec{},
	factories: map[EventType]func() Event{},
}

func init() {
	builtins := map[EventType]func() Event{
		EventTypeText:          func() Event { return &EventText{} },
		EventTypeThinking:      func() Event { return &EventThinking{} },
		EventTypeToolUse:       func() Event { return &EventToolUse{} },
		EventTypeToolResult:    func() Event { return &EventToolResult{} },
		EventTypeUsage:         func() Event { return &EventUsage{} },
		EventTypeError:         func() Event { return &EventError{} },
		EventTypeBlocked:       func() Event { return &EventBlocked{} },
		EventTypeDone:          func() Event { return &EventDone{} },
		EventTypeSubagentState: func() Event { return &EventSubagentState{} },
	}
	for t, f := range builtins {
		if err := RegisterEventFactory(t, f); err != nil {
			panic(err)
		}
	}
}

// RegisterEventCodec registers a decoder for a chunk type. Registering a type twice,
// built-in types included, is an error.
func RegisterEventCodec(typeName EventType, dec EventCodec) error {
	if dec == nil {
		return errors.Errorf("decoder for %q is nil", typeName)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.decoders[typeName]; exists {
		return errors.Errorf("decoder already registered for type %q", typeName)
	}
	registry.decoders[typeName] = dec
	return nil
}

// RegisterEventFactory registers a chunk type decoded with json.Unmarshal into the
// value returned by factory. Factory types also get a schema through ChunkSchema.
func RegisterEventFactory(typeName EventType, factory func() Event) error {
	err := RegisterEventCodec(typeName, func(b []byte) (Event, error) {
		ev := factory()
		if err := json.Unmarshal(b, ev); err != nil {
			return nil, err
		}
		if p, ok := ev.(interface{ SetPayload([]byte) }); ok {
			p.SetPayload(b)
		}
		return ev, nil
	})
	if err != nil {
		return err
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories[typeName] = factory
	return nil
}

func lookupDecoder(typeName EventType) EventCodec {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.decoders[typeName]
}

// zeroEvent returns an empty event of the given type, or nil when the type was
// registered without a factory.
func zeroEvent(typeName EventType) Event {
	registry.mu.RLock()
	f := registry.factories[typeName]
	registry.mu.RUnlock()
	if f == nil {
		return nil
	}
	return f()
}
