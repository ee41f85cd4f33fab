package statement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/transaction"
)

// Line is one statement row with its reconstructed running balance.
type Line struct {
	Transaction   *transaction.Transaction
	BalanceBefore int64
	BalanceAfter  int64
	// Reconciled reports whether the walked balance matches the snapshot stored on the record.
	Reconciled         bool
	CounterpartyNumber string
	Description        string
}

type Statement struct {
	Account    *account.Account
	Lines      []Line
	TotalCount int64
	Page       int
	PageSize   int
	// Reconciled is false when any line disagrees with its snapshot, or when
	// the newest record on the first page disagrees with the account balance.
	Reconciled bool
}

// Statement returns a page of records with running balances. The walk starts
// from the snapshot on the newest record of the page and moves backward by
// each record's signed amount; records that are not completed do not move
// the balance.
func (r *Reader) Statement(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*Statement, error) {
	acc, p, stable, err := r.consistentPage(ctx, accountID, page, pageSize)
	if err != nil {
		return nil, err
	}

	st := &Statement{
		Account:    acc,
		Lines:      make([]Line, 0, len(p.Records)),
		TotalCount: p.TotalCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
		Reconciled: true,
	}
	if len(p.Records) == 0 {
		return st, nil
	}
	switch {
	case !stable:
		r.logger.Debug("Account kept changing while reading statement, skipping balance check", "account_id", accountID.String())
	case p.Page == 1 && p.Records[0].ResultingBalance != acc.Balance:
		st.Reconciled = false
		r.logger.Warn("Newest record does not match account balance",
			"account_id", accountID.String(),
			"transaction_id", p.Records[0].ID.String(),
			"account_balance", acc.Balance,
			"stored_balance", p.Records[0].ResultingBalance)
	}

	numbers := make(map[uuid.UUID]string)
	running := p.Records[0].ResultingBalance
	for _, tx := range p.Records {
		line := Line{
			Transaction:  tx,
			BalanceAfter: running,
		}
		if tx.Status == transaction.StatusCompleted {
			line.Reconciled = tx.ResultingBalance == running
			running -= tx.SignedAmount()
		} else {
			line.Reconciled = true
		}
		line.BalanceBefore = running

		if cp := tx.Counterparty(); cp != nil && tx.Type == transaction.TypeTransfer {
			line.CounterpartyNumber = r.counterpartyNumber(ctx, numbers, *cp)
		}
		line.Description = describe(tx, line.CounterpartyNumber)

		if !line.Reconciled {
			st.Reconciled = false
			r.logger.Warn("Statement line does not match stored snapshot",
				"account_id", accountID.String(),
				"transaction_id", tx.ID.String(),
				"walked_balance", line.BalanceAfter,
				"stored_balance", tx.ResultingBalance)
		}
		st.Lines = append(st.Lines, line)
	}
	return st, nil
}

func (r *Reader) counterpartyNumber(ctx context.Context, cache map[uuid.UUID]string, id uuid.UUID) string {
	if n, ok := cache[id]; ok {
		return n
	}
	acc, err := r.accounts.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, account.ErrAccountNotFound{}) {
			r.logger.Error("Failed to resolve counterparty account", "account_id", id.String(), "error", err)
		}
		return ""
	}
	cache[id] = acc.Number
	return acc.Number
}

// describe returns the record's own description, or a default by type.
func describe(tx *transaction.Transaction, counterpartyNumber string) string {
	if tx.Description != "" {
		return tx.Description
	}
	switch tx.Type {
	case transaction.TypeDeposit:
		return "Cash Deposit"
	case transaction.TypeWithdrawal:
		return "Cash Withdrawal"
	}
	if counterpartyNumber == "" {
		return "Transfer"
	}
	if tx.Direction == transaction.DirectionDebit {
		return "Transfer to " + counterpartyNumber
	}
	return "Transfer from " + counterpartyNumber
}
