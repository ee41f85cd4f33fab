package ledger

import (
	"errors"
	"fmt"

	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/shared"
	"github.com/ledger-core/internal/domain/transaction"
)

// Validation errors. Returned before storage is touched.
var (
	ErrInvalidAmount       = errors.New("amount must be a positive number of minor units")
	ErrAmountAboveLimit    = fmt.Errorf("%w: above the configured limit", ErrInvalidAmount)
	ErrDescriptionTooLong  = errors.New("description is too long")
	ErrMissingAccount      = errors.New("account reference is required")
	ErrMissingDestination  = errors.New("destination account number is required")
	ErrInvalidOwner        = errors.New("owner id is required")
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")
	ErrUnknownOperation    = errors.New("unknown operation type")
)

// Lookup errors.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDestinationNotFound = errors.New("destination account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// State conflicts, evaluated on locked account state.
var (
	ErrAccountClosed        = errors.New("account is closed")
	ErrAccountNotActive     = errors.New("account is not active")
	ErrDestinationNotActive = errors.New("destination account is not active")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBalanceOverflow      = errors.New("resulting balance is out of range")
	ErrIdempotencyKeyReused = errors.New("idempotency key was already used for a different operation")
	ErrAccountNotEmpty      = errors.New("account balance must be zero")
	ErrPendingTransactions  = errors.New("account has pending transactions")
)

// ErrConflictRetriesExhausted is returned when every attempt of an operation
// lost a race with a concurrent writer. Nothing was applied.
var ErrConflictRetriesExhausted = errors.New("operation conflicted with concurrent updates, retries exhausted")

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	}
	return "internal"
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrDescriptionTooLong),
		errors.Is(err, ErrMissingAccount),
		errors.Is(err, ErrMissingDestination),
		errors.Is(err, ErrInvalidOwner),
		errors.Is(err, ErrSameAccountTransfer),
		errors.Is(err, ErrUnknownOperation):
		return KindValidation
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrDestinationNotFound),
		errors.Is(err, ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccountClosed),
		errors.Is(err, ErrAccountNotActive),
		errors.Is(err, ErrDestinationNotActive),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrBalanceOverflow),
		errors.Is(err, ErrIdempotencyKeyReused),
		errors.Is(err, ErrAccountNotEmpty),
		errors.Is(err, ErrPendingTransactions):
		return KindConflict
	case errors.Is(err, ErrConflictRetriesExhausted), isTransient(err):
		return KindTransient
	}
	return KindInternal
}

// Code maps err to the stable failure reason reported to callers.
func Code(err error) shared.FailureReason {
	codes := []struct {
		target error
		code   shared.FailureReason
	}{
		{ErrAmountAboveLimit, shared.FailureReasonAmountAboveLimit},
		{ErrInvalidAmount, shared.FailureReasonInvalidAmount},
		{ErrDescriptionTooLong, shared.FailureReasonDescriptionTooLong},
		{ErrMissingAccount, shared.FailureReasonInvalidRequest},
		{ErrMissingDestination, shared.FailureReasonInvalidRequest},
		{ErrInvalidOwner, shared.FailureReasonInvalidRequest},
		{ErrSameAccountTransfer, shared.FailureReasonSameAccountTransfer},
		{ErrUnknownOperation, shared.FailureReasonInvalidRequest},
		{ErrAccountNotFound, shared.FailureReasonAccountNotFound},
		{ErrDestinationNotFound, shared.FailureReasonDestinationNotFound},
		{ErrTransactionNotFound, shared.FailureReasonTransactionNotFound},
		{ErrAccountClosed, shared.FailureReasonAccountClosed},
		{ErrAccountNotActive, shared.FailureReasonAccountNotActive},
		{ErrDestinationNotActive, shared.FailureReasonDestinationNotActive},
		{ErrInsufficientFunds, shared.FailureReasonInsufficientFunds},
		{ErrBalanceOverflow, shared.FailureReasonAmountAboveLimit},
		{ErrIdempotencyKeyReused, shared.FailureReasonIdempotencyKeyMismatch},
		{ErrAccountNotEmpty, shared.FailureReasonAccountNotEmpty},
		{ErrPendingTransactions, shared.FailureReasonPendingTransactions},
		{ErrConflictRetriesExhausted, shared.FailureReasonConflict},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	if isTransient(err) {
		return shared.FailureReasonConflict
	}
	return shared.FailureReasonUnknownError
}

// isTransient reports whether a whole attempt may be retried from scratch.
func isTransient(err error) bool {
	return errors.Is(err, account.ErrConcurrentModification{}) ||
		errors.Is(err, transaction.ErrDuplicateIdempotencyKey{}) ||
		errors.Is(err, account.ErrDuplicateAccountNumber{}) ||
		errors.Is(err, shared.ErrSerializationConflict)
}
