// Package operation describes ledger operations submitted asynchronously
// through the message broker, and the recorded outcome of each one.
package operation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/transaction"
)

var (
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
	ErrInvalidType           = errors.New("invalid operation type")
	ErrMissingAccount        = errors.New("account id is required")
	ErrMissingDestination    = errors.New("destination account number is required for transfers")
)

// Request is the broker message for one operation. IdempotencyKey doubles as
// the operation id and the message key.
type Request struct {
	IdempotencyKey    string           `json:"idempotency_key"`
	Type              transaction.Type `json:"type"`
	AccountID         uuid.UUID        `json:"account_id"`
	DestinationNumber string           `json:"destination_number,omitempty"`
	Amount            int64            `json:"amount"`
	Description       string           `json:"description,omitempty"`
	CorrelationID     string           `json:"correlation_id"`
	Timestamp         time.Time        `json:"timestamp"`
}

// Validate checks the message shape only; amounts and account state are the
// engine's business.
func (r *Request) Validate() error {
	if r.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	if !r.Type.Valid() {
		return ErrInvalidType
	}
	if r.AccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if r.Type == transaction.TypeTransfer && r.DestinationNumber == "" {
		return ErrMissingDestination
	}
	return nil
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Result is the tracked outcome of a submitted operation.
type Result struct {
	IdempotencyKey string           `json:"idempotency_key" bson:"_id"`
	Type           transaction.Type `json:"type" bson:"type"`
	AccountID      uuid.UUID        `json:"account_id" bson:"account_id"`
	Amount         int64            `json:"amount" bson:"amount"`
	Status         Status           `json:"status" bson:"status"`
	TransactionID  *uuid.UUID       `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	NewBalance     *int64           `json:"new_balance,omitempty" bson:"new_balance,omitempty"`
	FailureReason  string           `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CorrelationID  string           `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	SubmittedAt    time.Time        `json:"submitted_at" bson:"submitted_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// NewPendingResult records that req was accepted for processing.
func NewPendingResult(req *Request) *Result {
	return &Result{
		IdempotencyKey: req.IdempotencyKey,
		Type:           req.Type,
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		Status:         StatusPending,
		CorrelationID:  req.CorrelationID,
		SubmittedAt:    time.Now().UTC(),
	}
}
