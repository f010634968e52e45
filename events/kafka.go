package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	batchTimeout = 10 * time.Millisecond
	batchSize    = 100
	clientID     = "shop-inventory"
)

// Producer is the part of a Kafka writer the publisher needs.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by Event.Key.
type KafkaPublisher struct {
	producer Producer
	logger   *zap.Logger
}

// NewKafkaPublisher builds a traced writer for topic on broker. Trace context is carried in
// the message headers.
func NewKafkaPublisher(broker, topic string, tp trace.TracerProvider, logger *zap.Logger) (*KafkaPublisher, error) {
	base := &kafkago.Writer{
		Addr:         kafkago.TCP(broker),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: batchTimeout,
		BatchSize:    batchSize,
	}
	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka writer: %w", err)
	}
	return NewPublisher(writer, logger), nil
}

// NewPublisher wraps an existing producer.
func NewPublisher(p Producer, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: p, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", e.Type, err)
	}
	msg := kafkago.Message{
		Key:   []byte(e.Key()),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		p.logger.Error("Failed to publish inventory event",
			zap.Error(err),
			zap.String("event_type", string(e.Type)),
			zap.String("event_id", e.ID),
		)
		return err
	}
	p.logger.Debug("Published inventory event", zap.String("event_type", string(e.Type)), zap.String("key", e.Key()))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
