package audit

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// KafkaSink publishes audit events keyed by entity so one record's history
// stays on one partition.
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

func NewKafkaSink(writer MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

func NewKafkaWriter(brokers []string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
	}
}

func (s *KafkaSink) Record(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	key := evt.EntityID
	if key == "" {
		key = evt.Type
	}
	return s.writer.WriteMessages(ctx, kafkago.Message{
		Topic: s.topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "domain", Value: []byte(evt.Domain)},
		},
	})
}
