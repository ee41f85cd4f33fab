package activity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert writes the entry keyed by its transaction id, so replays are harmless.
	Upsert(ctx context.Context, entry *Entry) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Entry, error)
	Summarize(ctx context.Context, accountID uuid.UUID) (*Summary, error)
}

type ErrEntryNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "activity entry not found: " + e.TransactionID.String()
}

// Is matches any ErrEntryNotFound when the target has no transaction id.
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}
