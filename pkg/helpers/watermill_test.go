package helpers

import (
	"context"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	topic    string
	messages []*message.Message
}

func (c *capturePublisher) Publish(topic string, messages ...*message.Message) error {
	c.topic = topic
	c.messages = append(c.messages, messages...)
	return nil
}

func (c *capturePublisher) Close() error {
	return nil
}

func TestCorrelationPublisherDecorator(t *testing.T) {
	pub := &capturePublisher{}
	d := CorrelationPublisherDecorator{Publisher: pub}

	withCtx := message.NewMessage(watermill.NewUUID(), []byte("{}"))
	withCtx.SetContext(ContextWithCorrelationID(context.Background(), "replay-1"))

	preset := message.NewMessage(watermill.NewUUID(), []byte("{}"))
	preset.Metadata.Set(CorrelationIDMetadataKey, "kept")

	bare := message.NewMessage(watermill.NewUUID(), []byte("{}"))

	require.NoError(t, d.Publish("topic", withCtx, preset, bare))
	assert.Equal(t, "topic", pub.topic)
	assert.Equal(t, "replay-1", CorrelationIDFromMessage(withCtx))
	assert.Equal(t, "kept", CorrelationIDFromMessage(preset))
	assert.True(t, strings.HasPrefix(CorrelationIDFromMessage(bare), "gen_"))
	assert.Equal(t, "", CorrelationIDFromMessage(nil))
}
