package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledger-core/internal/domain/activity"
	"github.com/ledger-core/internal/domain/outbox"
	"github.com/ledger-core/internal/domain/shared"
)

// Projector moves one outbox message into the read side.
type Projector interface {
	Project(ctx context.Context, message *outbox.Message) error
}

// ActivityProjector writes committed records into the activity projection
// and marks their outbox rows as processed.
type ActivityProjector struct {
	outboxRepo   outbox.Repository
	activityRepo activity.Repository
	logger       *slog.Logger
}

func NewActivityProjector(outboxRepo outbox.Repository, activityRepo activity.Repository, logger *slog.Logger) *ActivityProjector {
	return &ActivityProjector{
		outboxRepo:   outboxRepo,
		activityRepo: activityRepo,
		logger:       logger,
	}
}

func (p *ActivityProjector) Project(ctx context.Context, message *outbox.Message) error {
	tx, err := message.Transaction()
	if err != nil {
		p.logger.Error("Failed to decode transaction record from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		// a payload that cannot be decoded will never project
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to mark outbox message as FAILED_TO_PUBLISH", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("correlation_id", tx.CorrelationID.String())

	// Upsert keyed by transaction id makes a redelivered message harmless.
	if err := p.activityRepo.Upsert(ctx, activity.FromTransaction(tx)); err != nil {
		logger.Error("Failed to write activity entry", "transaction_id", tx.ID, "error", err)
		return fmt.Errorf("failed to project transaction %s: %w", tx.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to mark outbox message as PROCESSED",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		return fmt.Errorf("projection of %s OK, but failed to mark outbox %d as PROCESSED: %w", message.TransactionID, message.ID, err)
	}

	logger.Debug("Projected outbox message", "outbox_id", message.ID, "transaction_id", message.TransactionID)
	return nil
}
