// Package transaction models the append-only log of balance changes.
//
// Every record belongs to exactly one account. A transfer is written as two
// records sharing a CorrelationID: a debit leg on the source account and a
// credit leg on the destination account. For single-record operations the
// CorrelationID equals the record ID.
package transaction

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidAmount = errors.New("transaction amount must be positive")

type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeTransfer   Type = "transfer"
)

func (t Type) Valid() bool {
	return t == TypeDeposit || t == TypeWithdrawal || t == TypeTransfer
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// Direction says whether a record added to or removed from its account.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Transaction is one immutable record in the log.
type Transaction struct {
	ID                   uuid.UUID  `json:"id"`
	Sequence             int64      `json:"sequence"`
	AccountID            uuid.UUID  `json:"account_id"`
	Type                 Type       `json:"type"`
	Direction            Direction  `json:"direction"`
	Amount               int64      `json:"amount"`
	SourceAccountID      *uuid.UUID `json:"source_account_id,omitempty"`
	DestinationAccountID *uuid.UUID `json:"destination_account_id,omitempty"`
	Description          string     `json:"description"`
	Status               Status     `json:"status"`
	ResultingBalance     int64      `json:"resulting_balance"`
	IdempotencyKey       string     `json:"idempotency_key,omitempty"`
	CorrelationID        uuid.UUID  `json:"correlation_id"`
	CreatedAt            time.Time  `json:"created_at"`
}

// SignedAmount is the effect of the record on its account balance.
func (t *Transaction) SignedAmount() int64 {
	if t.Direction == DirectionDebit {
		return -t.Amount
	}
	return t.Amount
}

// BalanceBefore is the account balance right before this record was applied.
func (t *Transaction) BalanceBefore() int64 {
	return t.ResultingBalance - t.SignedAmount()
}

// Counterparty returns the other account of a transfer leg, or nil.
func (t *Transaction) Counterparty() *uuid.UUID {
	if t.Type != TypeTransfer {
		return nil
	}
	if t.Direction == DirectionDebit {
		return t.DestinationAccountID
	}
	return t.SourceAccountID
}

func newRecord(accountID uuid.UUID, typ Type, dir Direction, amount, resulting int64, description, key string) *Transaction {
	id := uuid.New()
	return &Transaction{
		ID:               id,
		AccountID:        accountID,
		Type:             typ,
		Direction:        dir,
		Amount:           amount,
		Description:      description,
		Status:           StatusCompleted,
		ResultingBalance: resulting,
		IdempotencyKey:   key,
		CorrelationID:    id,
		CreatedAt:        time.Now().UTC(),
	}
}

// NewDeposit builds a completed credit record for accountID.
func NewDeposit(accountID uuid.UUID, amount, resulting int64, description, key string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	tx := newRecord(accountID, TypeDeposit, DirectionCredit, amount, resulting, description, key)
	tx.DestinationAccountID = &accountID
	return tx, nil
}

// NewWithdrawal builds a completed debit record for accountID.
func NewWithdrawal(accountID uuid.UUID, amount, resulting int64, description, key string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	tx := newRecord(accountID, TypeWithdrawal, DirectionDebit, amount, resulting, description, key)
	tx.SourceAccountID = &accountID
	return tx, nil
}

// NewTransferLegs builds the debit and credit legs of one transfer. Only the
// debit leg carries the idempotency key; the credit leg shares its correlation id.
func NewTransferLegs(sourceID, destinationID uuid.UUID, amount, sourceResulting, destinationResulting int64, description, key string) (debit, credit *Transaction, err error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	debit = newRecord(sourceID, TypeTransfer, DirectionDebit, amount, sourceResulting, description, key)
	credit = newRecord(destinationID, TypeTransfer, DirectionCredit, amount, destinationResulting, description, "")
	credit.CorrelationID = debit.CorrelationID
	credit.CreatedAt = debit.CreatedAt

	for _, leg := range []*Transaction{debit, credit} {
		src, dst := sourceID, destinationID
		leg.SourceAccountID = &src
		leg.DestinationAccountID = &dst
	}
	return debit, credit, nil
}
