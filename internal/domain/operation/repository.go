package operation

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores operation outcomes keyed by idempotency key.
type Repository interface {
	Create(ctx context.Context, result *Result) error
	MarkCompleted(ctx context.Context, key string, transactionID uuid.UUID, newBalance int64) error
	MarkFailed(ctx context.Context, key string, reason string) error
	GetByKey(ctx context.Context, key string) (*Result, error)
}

type ErrResultNotFound struct {
	Key string
}

func (e ErrResultNotFound) Error() string {
	return "operation result not found: " + e.Key
}

func (e ErrResultNotFound) Is(target error) bool {
	t, ok := target.(ErrResultNotFound)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}

// ErrDuplicateOperation means an operation with the same key was already submitted.
type ErrDuplicateOperation struct {
	Key string
}

func (e ErrDuplicateOperation) Error() string {
	return "operation already submitted: " + e.Key
}

func (e ErrDuplicateOperation) Is(target error) bool {
	t, ok := target.(ErrDuplicateOperation)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}
