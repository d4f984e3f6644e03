package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	skafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Writer defines the subset of segmentio kafka.Writer we need. This makes the producer testable.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Publisher is the interface used by services to publish events.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// KafkaProducer is a thin wrapper around a kafka writer implementing Publisher.
type KafkaProducer struct {
	writer Writer
	log    logrus.FieldLogger
}

// NewKafkaProducer creates a KafkaProducer writing to topic on the given brokers.
// Writes are synchronous and wait for all in-sync replicas.
func NewKafkaProducer(brokers []string, topic string, log logrus.FieldLogger) *KafkaProducer {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireAll,
	}
	return &KafkaProducer{writer: w, log: log.WithField("component", "kafka")}
}

// NewKafkaProducerWithWriter allows injecting a test writer.
func NewKafkaProducerWithWriter(w Writer, log logrus.FieldLogger) *KafkaProducer {
	return &KafkaProducer{writer: w, log: log.WithField("component", "kafka")}
}

// Publish marshals the value to JSON and writes a kafka message with the given key.
// The key is the shipment id so all events of one shipment land on one partition in order.
func (p *KafkaProducer) Publish(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal kafka value: %w", err)
	}
	msg := skafka.Message{Key: []byte(key), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.WithError(err).WithField("key", key).Error("kafka write failed")
		return err
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
