package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/helpers"
)

// EventSink represents a destination for chunks and lifecycle updates.
type EventSink interface {
	// PublishEvent publishes an event to the sink.
	// Returns an error if the event could not be published.
	PublishEvent(event Event) error
}

// WatermillSink publishes events to a watermill Publisher.
// This allows events to be distributed through the watermill message bus
// to multiple subscribers.
type WatermillSink struct {
	publisher     message.Publisher
	topic         string
	correlationID string
}

type WatermillSinkOption func(*WatermillSink)

// WithCorrelationID stamps every published message with the given correlation id.
func WithCorrelationID(id string) WatermillSinkOption {
	return func(w *WatermillSink) {
		w.correlationID = id
	}
}

// NewWatermillSink creates a new WatermillSink that publishes to the given
// publisher and topic.
func NewWatermillSink(publisher message.Publisher, topic string, options ...WatermillSinkOption) *WatermillSink {
	ret := &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// PublishEvent serializes the event to JSON and publishes it as a watermill message.
func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if w.correlationID != "" {
		msg.SetContext(helpers.ContextWithCorrelationID(context.Background(), w.correlationID))
	}

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// JSONLSink writes every event as one JSON line, producing files that can be
// replayed later.
type JSONLSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

func (s *JSONLSink) PublishEvent(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(event); err != nil {
		return errors.Wrap(err, "could not write chunk")
	}
	return nil
}

var _ EventSink = (*JSONLSink)(nil)

// CollectingSink keeps every published event in memory.
type CollectingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *CollectingSink) PublishEvent(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *CollectingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

var _ EventSink = (*CollectingSink)(nil)
