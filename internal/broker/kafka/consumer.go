package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the part of a fetched record handlers care about.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one message. A nil return commits its offset; an error
// stops the consumer with the offset left uncommitted.
type Handler func(ctx context.Context, m Message) error

type Consumer struct {
	r     messageReader
	topic string
}

// NewConsumer reads topic; with a group id offsets are committed to that
// consumer group.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		MaxWait:           time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	c := newConsumerWithReader(kafka.NewReader(cfg))
	c.topic = topic
	return c
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Topic() string { return c.topic }

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume blocks until ctx is done or h fails.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	for {
		km, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		m := Message{Topic: km.Topic, Partition: km.Partition, Offset: km.Offset, Key: km.Key, Value: km.Value}
		if err := h(ctx, m); err != nil {
			// Важно: commit делаем только при успехе, иначе потеряем сообщение.
			return errors.Wrapf(err, "handle %s[%d]@%d", m.Topic, m.Partition, m.Offset)
		}
		if err := c.r.CommitMessages(ctx, km); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
