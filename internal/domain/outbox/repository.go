package outbox

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/shared"
)

// Repository manages transactional outbox message persistence
type Repository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Message, error)
}

type ErrMessageNotFound struct {
	ID            int64
	TransactionID uuid.UUID
}

func (e ErrMessageNotFound) Error() string {
	if e.TransactionID != uuid.Nil {
		return "outbox message not found for transaction: " + e.TransactionID.String()
	}
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

func (e ErrMessageNotFound) Is(target error) bool {
	_, ok := target.(ErrMessageNotFound)
	return ok
}
