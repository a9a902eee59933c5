package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher ships audit events to a Kafka topic, keyed by session id so
// one session's events stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects a producer to the given brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// Emit produces the event asynchronously; delivery failures surface through
// the produce callback and are dropped, matching the protocol's stance that
// observability must never block a login or logout.
func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.SessionID),
		Value: payload,
	}
	p.client.Produce(ctx, record, nil)
	return nil
}

// Close flushes pending records and releases the producer.
func (p *KafkaPublisher) Close() error {
	if err := p.client.Flush(context.Background()); err != nil {
		return err
	}
	p.client.Close()
	return nil
}
