// Package activity is the read-side projection of committed transaction
// records, used for account activity summaries.
package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/transaction"
)

// Entry mirrors one transaction record in the projection store.
type Entry struct {
	TransactionID    uuid.UUID             `json:"transaction_id" bson:"transaction_id"`
	AccountID        uuid.UUID             `json:"account_id" bson:"account_id"`
	CorrelationID    uuid.UUID             `json:"correlation_id" bson:"correlation_id"`
	Type             transaction.Type      `json:"type" bson:"type"`
	Direction        transaction.Direction `json:"direction" bson:"direction"`
	Amount           int64                 `json:"amount" bson:"amount"`
	ResultingBalance int64                 `json:"resulting_balance" bson:"resulting_balance"`
	CounterpartyID   *uuid.UUID            `json:"counterparty_id,omitempty" bson:"counterparty_id,omitempty"`
	Description      string                `json:"description,omitempty" bson:"description,omitempty"`
	Sequence         int64                 `json:"sequence" bson:"sequence"`
	CreatedAt        time.Time             `json:"created_at" bson:"created_at"`
	ProjectedAt      time.Time             `json:"projected_at" bson:"projected_at"`
}

// FromTransaction builds the projection of a committed record.
func FromTransaction(tx *transaction.Transaction) *Entry {
	return &Entry{
		TransactionID:    tx.ID,
		AccountID:        tx.AccountID,
		CorrelationID:    tx.CorrelationID,
		Type:             tx.Type,
		Direction:        tx.Direction,
		Amount:           tx.Amount,
		ResultingBalance: tx.ResultingBalance,
		CounterpartyID:   tx.Counterparty(),
		Description:      tx.Description,
		Sequence:         tx.Sequence,
		CreatedAt:        tx.CreatedAt,
		ProjectedAt:      time.Now().UTC(),
	}
}

// Summary totals an account's activity, in minor units.
type Summary struct {
	AccountID         uuid.UUID `json:"account_id"`
	TotalDeposits     int64     `json:"total_deposits"`
	TotalWithdrawals  int64     `json:"total_withdrawals"`
	TotalTransfersIn  int64     `json:"total_transfers_in"`
	TotalTransfersOut int64     `json:"total_transfers_out"`
	EntryCount        int64     `json:"entry_count"`
}

// Add folds one aggregated bucket into the summary.
func (s *Summary) Add(typ transaction.Type, dir transaction.Direction, total, count int64) {
	switch {
	case typ == transaction.TypeDeposit:
		s.TotalDeposits += total
	case typ == transaction.TypeWithdrawal:
		s.TotalWithdrawals += total
	case typ == transaction.TypeTransfer && dir == transaction.DirectionCredit:
		s.TotalTransfersIn += total
	case typ == transaction.TypeTransfer:
		s.TotalTransfersOut += total
	}
	s.EntryCount += count
}
