// Package consumer turns broker messages into processing calls.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/platform/messaging/producers"
	"github.com/ledger-core/internal/transaction_processor/service"
)

// OperationEventHandler handles operation request messages from Kafka.
type OperationEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewOperationEventHandler accepts a nil producer when the DLQ is disabled.
func NewOperationEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *OperationEventHandler {
	return &OperationEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage returns nil when the offset may be committed.
func (h *OperationEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request operation.Request
	if err := json.Unmarshal(value, &request); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal operation request", err)
	}
	// without a key the outcome cannot be tracked or deduplicated
	if request.IdempotencyKey == "" {
		return h.deadLetter(ctx, key, value, "Operation request has no idempotency key", operation.ErrMissingIdempotencyKey)
	}

	logger := h.logger.With("idempotency_key", request.IdempotencyKey)
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received operation request",
		"account_id", request.AccountID.String(),
		"type", request.Type,
		"amount", request.Amount,
	)

	if err := h.processingService.ProcessOperation(ctx, &request); err != nil {
		logger.Error("Failed to process operation", "error", err)
		return fmt.Errorf("processing operation %s failed: %w", request.IdempotencyKey, err)
	}
	return nil
}

func (h *OperationEventHandler) deadLetter(ctx context.Context, key, value []byte, msg string, cause error) error {
	h.logger.Error(msg, "error", cause, "message_key", string(key))

	if h.producer != nil {
		reason := fmt.Sprintf("%s: %s", msg, cause.Error())
		if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			return nil
		}
	}
	return fmt.Errorf("unprocessable message %q: %w", string(key), cause)
}
