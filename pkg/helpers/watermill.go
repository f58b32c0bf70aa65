package helpers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WatermillZerologAdapter routes watermill's logging into zerolog.
type WatermillZerologAdapter struct {
	logger zerolog.Logger
}

func (w *WatermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Fields(fields).Err(err).Msg(msg)
}

// Info is logged at debug level, watermill reports every handler start as info.
func (w *WatermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(fields).Msg(msg)
}

func (w *WatermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(fields).Msg(msg)
}

func (w *WatermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(fields).Msg(msg)
}

func (w *WatermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillZerologAdapter{logger: w.logger.With().Fields(fields).Logger()}
}

func NewWatermill(logger zerolog.Logger) *WatermillZerologAdapter {
	return &WatermillZerologAdapter{logger: logger.With().Str("component", "watermill").Logger()}
}

var _ watermill.LoggerAdapter = &WatermillZerologAdapter{}

// CorrelationIDMetadataKey is the message metadata key holding the correlation id.
const CorrelationIDMetadataKey = "correlation_id"

type correlationIDKeyType string

const correlationIDKey correlationIDKeyType = "correlation_id"

func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext returns the correlation id carried by ctx. Missing ids
// are generated with a "gen_" prefix so they can be told apart.
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v
	}
	log.Trace().Msg("correlation id not found in context")
	return "gen_" + shortuuid.New()
}

// CorrelationIDFromMessage returns the correlation id stamped on msg, or "".
func CorrelationIDFromMessage(msg *message.Message) string {
	if msg == nil {
		return ""
	}
	return msg.Metadata.Get(CorrelationIDMetadataKey)
}

// CorrelationPublisherDecorator stamps outgoing messages with the correlation id of
// their context, keeping ids that are already set.
type CorrelationPublisherDecorator struct {
	message.Publisher
}

func (c CorrelationPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.Metadata.Get(CorrelationIDMetadataKey) != "" {
			continue
		}
		msg.Metadata.Set(CorrelationIDMetadataKey, CorrelationIDFromContext(msg.Context()))
	}
	return c.Publisher.Publish(topic, messages...)
}
