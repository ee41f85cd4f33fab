package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
)

const (
	correlationIDHeader = "correlation-id"
	dlqReasonHeader     = "dlq-reason"
)

type topicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

type readRetry struct {
	Tries    uint
	Interval time.Duration
}

var defaultReadRetry = readRetry{Tries: 5, Interval: 2 * time.Second}

// ensureTopic creates the topic unless its partitions can be read. Partition
// reads are retried because a freshly started broker reports errors for a while.
func ensureTopic(ctx context.Context, conn topicAdmin, spec topicSpec, retry readRetry, log *slog.Logger) error {
	log.Info("Checking if Kafka topic exists", "topic", spec.Name)

	partitions, err := backoff.Retry(ctx, func() ([]kafka.Partition, error) {
		return conn.ReadPartitions(spec.Name)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(retry.Interval)),
		backoff.WithMaxTries(retry.Tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("Failed to read partitions, retrying...", "topic", spec.Name, "error", err, "next_attempt_in", next)
		}),
	)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil && len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", spec.Name, "partitions", len(partitions))
		return nil
	}

	log.Info("Kafka topic does not exist or is not accessible, attempting to create it", "topic", spec.Name, "last_read_error", err)
	cfg := kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	}
	if cfg.NumPartitions <= 0 {
		cfg.NumPartitions = 1
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	if err := conn.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", spec.Name, err)
	}
	log.Info("Successfully created Kafka topic", "topic", spec.Name)
	return nil
}

// dialAndEnsureTopic opens a short-lived admin connection to brokers.
func dialAndEnsureTopic(ctx context.Context, brokers string, spec topicSpec, log *slog.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()
	return ensureTopic(ctx, conn, spec, defaultReadRetry, log)
}
