// Package consumers reads operation requests from Kafka.
package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledger-core/internal/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler returns nil when the message may be committed.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// MessageReader wraps the kafka.Reader methods the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer implements Consumer using a kafka-go consumer group reader.
type KafkaConsumer struct {
	reader     MessageReader
	logger     *slog.Logger
	topic      string
	groupID    string
	fetchPause time.Duration
	done       chan struct{}
}

func NewKafkaConsumer(logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := kafka.FirstOffset
	if cfg.StartOffset == kafka.LastOffset {
		startOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Brokers},
		Topic:       cfg.OperationTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: startOffset,
	})
	return newKafkaConsumer(reader, logger, cfg.OperationTopic, cfg.ConsumerGroup)
}

func newKafkaConsumer(reader MessageReader, logger *slog.Logger, topic, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		logger:     logger.With("topic", topic, "group_id", groupID),
		topic:      topic,
		groupID:    groupID,
		fetchPause: time.Second,
		done:       make(chan struct{}),
	}
}

// Subscribe consumes in a background goroutine until ctx is canceled. Offsets
// are committed only for messages the handler accepted; a rejected message is
// fetched again after the group rebalances or the process restarts.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic")

	go func() {
		defer close(c.done)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Context canceled, stopping consumer")
					return
				}
				c.logger.Error("Failed to fetch message from Kafka", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.fetchPause):
				}
				continue
			}

			logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
			logger.Debug("Received message from Kafka")

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				logger.Error("Failed to process message, will not commit offset", "error", err)
				continue
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Error("Failed to commit message after successful processing", "error", err)
			}
		}
	}()

	return nil
}

// Done is closed when the consume loop has exited.
func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
