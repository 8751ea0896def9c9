// Package audit publishes guardrail events to Kafka for downstream
// compliance review. It sits off the hot byte-delivery path: a nil
// *Producer makes every publish a no-op.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// EventType names the kind of guardrail event being recorded.
type EventType string

const (
	RegexRejected EventType = "regex_rejected"
	WebhookFailed EventType = "webhook_failed"
	PolicyDenied  EventType = "policy_denied"
)

// Event is one compliance-relevant occurrence during stream processing.
type Event struct {
	Type           EventType `json:"type"`
	RouteID        string    `json:"route_id"`
	StreamID       string    `json:"stream_id"`
	RecognizerName string    `json:"recognizer_name,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Producer wraps a Sarama async producer publishing guardrail events to a
// single topic. The zero value is not usable; use New or a nil *Producer
// for the no-op default.
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
}

// New dials brokers and returns a Producer publishing to topic.
func New(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Compression = sarama.CompressionSnappy

	p, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit: creating producer: %w", err)
	}
	return &Producer{producer: p, topic: topic}, nil
}

// Publish enqueues evt for async delivery. A nil receiver is a no-op, so
// callers never need to branch on whether auditing is configured.
func (p *Producer) Publish(evt Event) error {
	if p == nil {
		return nil
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("audit: marshaling event: %w", err)
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.StreamID),
		Value: sarama.ByteEncoder(msg),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(evt.Type)},
			{Key: []byte("route-id"), Value: []byte(evt.RouteID)},
		},
	}
	return nil
}

// Errors returns the producer's error channel, or nil for a nil receiver.
func (p *Producer) Errors() <-chan *sarama.ProducerError {
	if p == nil {
		return nil
	}
	return p.producer.Errors()
}

// Close shuts down the underlying producer. A nil receiver is a no-op.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
