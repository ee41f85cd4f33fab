package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Order int

const (
	OrderNewestFirst Order = iota
	OrderOldestFirst
)

// Filter selects records for Query and Count. Zero values mean "any".
// Limit and Offset are ignored by Count.
type Filter struct {
	AccountID uuid.UUID
	Types     []Type
	Status    Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	Order     Order
}

// Replay is the aggregate of an account's completed records.
type Replay struct {
	AccountID uuid.UUID
	Sum       int64
	Count     int64
}

// Repository is the append-only transaction log. There is no update or delete.
type Repository interface {
	// Append stores a new record and assigns its Sequence. A second record
	// with the same non-empty IdempotencyKey fails with ErrDuplicateIdempotencyKey.
	Append(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// GetByIdempotencyKey returns nil, nil when no record carries the key.
	GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	GetByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*Transaction, error)
	Query(ctx context.Context, filter Filter) ([]*Transaction, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Replay(ctx context.Context, accountID uuid.UUID) (*Replay, error)
}

type ErrTransactionNotFound struct {
	ID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.ID.String()
}

func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}

// ErrDuplicateIdempotencyKey is raised by the unique index on idempotency keys
// when two requests with the same key race past the lookup.
type ErrDuplicateIdempotencyKey struct {
	Key string
}

func (e ErrDuplicateIdempotencyKey) Error() string {
	return "duplicate idempotency key: " + e.Key
}

func (e ErrDuplicateIdempotencyKey) Is(target error) bool {
	t, ok := target.(ErrDuplicateIdempotencyKey)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}
