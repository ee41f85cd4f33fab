// Package producers writes ledger operation requests and dead letters to Kafka.
package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ledger-core/internal/config"
	"github.com/ledger-core/internal/domain/operation"
	"github.com/segmentio/kafka-go"
)

type OperationProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewOperationProducer ensures the operation topic exists and returns a
// synchronous producer; the gateway only answers 202 once the write is acknowledged.
func NewOperationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*OperationProducer, error) {
	if cfg.OperationTopic == "" {
		return nil, fmt.Errorf("kafka operation topic is not configured")
	}

	spec := topicSpec{Name: cfg.OperationTopic, NumPartitions: cfg.NumPartitions, ReplicationFactor: cfg.ReplicationFactor}
	if err := dialAndEnsureTopic(ctx, cfg.Brokers, spec, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure operation topic %s exists: %w", cfg.OperationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.OperationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
	}

	return &OperationProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.OperationTopic,
	}, nil
}

// Publish keys the message by idempotency key so redeliveries of the same
// operation land on the same partition.
func (p *OperationProducer) Publish(ctx context.Context, request *operation.Request) error {
	value, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal operation request: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(request.IdempotencyKey),
		Value: value,
	}
	if request.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: correlationIDHeader, Value: []byte(request.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish operation request",
			"topic", p.topic,
			"idempotency_key", request.IdempotencyKey,
			"error", err,
		)
		return fmt.Errorf("failed to publish operation to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published operation request", "topic", p.topic, "idempotency_key", request.IdempotencyKey)
	return nil
}

func (p *OperationProducer) Close() error {
	p.logger.Info("Closing operation producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
