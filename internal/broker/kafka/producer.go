package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// All payloads are JSON.
var jsonHeader = kafka.Header{Key: "content-type", Value: []byte("application/json")}

type Producer struct {
	w   messageWriter
	now func() time.Time
}

// NewProducer waits for acks from all in-sync replicas.
func NewProducer(brokers []string) *Producer {
	return newProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	})
}

func newProducerWithWriter(w messageWriter) *Producer {
	return &Producer{w: w, now: time.Now}
}

// Publish writes one message. Messages with the same key land on the same
// partition, so updates for one shipment stay ordered.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value:   value,
		Headers: []kafka.Header{jsonHeader},
		Time:    p.now().UTC(),
	}); err != nil {
		return errors.Wrapf(err, "kafka publish %s", topic)
	}
	return nil
}

func (p *Producer) Close() error {
	if c, ok := p.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
