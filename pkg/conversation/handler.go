package conversation

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/events"
	"github.com/go-go-golems/turnweaver/pkg/helpers"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// ApplyFunc applies a subagent update and reports whether a record changed.
type ApplyFunc func(msg *message.Message, u turns.SubagentUpdate) bool

// SubagentUpdateHandler returns a watermill handler turning subagent_state messages
// into updates passed to apply. Other chunks and undecodable payloads are acked and
// skipped so a bad publisher cannot stall the topic.
func SubagentUpdateHandler(apply ApplyFunc) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		logger := log.With().
			Str("message_uuid", msg.UUID).
			Str("correlation_id", helpers.CorrelationIDFromMessage(msg)).
			Logger()

		e, err := events.NewEventFromJson(msg.Payload)
		if err != nil {
			logger.Warn().Err(err).Msg("could not decode subagent update")
			return nil
		}
		ev, ok := e.(*events.EventSubagentState)
		if !ok {
			logger.Debug().Str("event_type", string(e.Type())).Msg("ignoring non subagent_state message")
			return nil
		}

		u := UpdateFromEvent(ev)
		if u.ID == "" {
			logger.Debug().Msg("ignoring subagent update without id")
			return nil
		}
		applied := apply(msg, u)
		logger.Debug().
			Str("subagent_id", u.ID).
			Str("status", string(u.Status)).
			Bool("applied", applied).
			Msg("subagent update")
		return nil
	}
}

// Handler applies updates to this conversation only.
func (c *Conversation) Handler() func(msg *message.Message) error {
	return SubagentUpdateHandler(func(_ *message.Message, u turns.SubagentUpdate) bool {
		return c.ApplySubagentUpdate(u)
	})
}
