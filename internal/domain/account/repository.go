package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines account persistence operations. Implementations scoped to
// a storage transaction hold LockForUpdate locks until that transaction ends.
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByNumber(ctx context.Context, number string) (*Account, error)

	// LockForUpdate returns the account and holds an exclusive lock on it for
	// the rest of the enclosing storage transaction.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)

	// CompareAndSwapBalance sets the balance to newBalance only if it still
	// equals expected, otherwise it fails with ErrConcurrentModification.
	CompareAndSwapBalance(ctx context.Context, id uuid.UUID, expected, newBalance int64) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error

	// ListIDs pages through account ids in ascending order, starting after the given id.
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

// ErrConcurrentModification means the balance changed between read and write.
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + e.AccountID.String()
}

// Is matches any ErrConcurrentModification when the target carries no id.
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || t.AccountID == e.AccountID
}

// ErrAccountNotFound is returned for lookups by id or by number.
type ErrAccountNotFound struct {
	AccountID uuid.UUID
	Number    string
}

func (e ErrAccountNotFound) Error() string {
	if e.Number != "" {
		return "account not found: number " + e.Number
	}
	return "account not found: " + e.AccountID.String()
}

func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil && t.Number == "" {
		return true
	}
	return t.AccountID == e.AccountID && t.Number == e.Number
}

// ErrDuplicateAccountNumber indicates an account number collision.
type ErrDuplicateAccountNumber struct {
	Number string
}

func (e ErrDuplicateAccountNumber) Error() string {
	return "account with number already exists: " + e.Number
}

func (e ErrDuplicateAccountNumber) Is(target error) bool {
	t, ok := target.(ErrDuplicateAccountNumber)
	if !ok {
		return false
	}
	return t.Number == "" || t.Number == e.Number
}
