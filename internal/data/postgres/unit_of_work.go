package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/platform/persistence"
)

// UnitOfWork implements ledger.Store on a single PostgreSQL transaction.
type UnitOfWork struct {
	db           *persistence.PostgresDB
	accounts     *AccountRepository
	transactions *TransactionRepository
	outbox       *OutboxRepository
}

var _ ledger.Store = (*UnitOfWork)(nil)

func NewUnitOfWork(logger *slog.Logger, db *persistence.PostgresDB) *UnitOfWork {
	return &UnitOfWork{
		db:           db,
		accounts:     NewAccountRepository(logger, db),
		transactions: NewTransactionRepository(logger, db),
		outbox:       NewOutboxRepository(logger, db),
	}
}

func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context, repos ledger.Repositories) error) error {
	return u.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, ledger.Repositories{
			Accounts:     u.accounts.WithTx(tx),
			Transactions: u.transactions.WithTx(tx),
			Outbox:       u.outbox.WithTx(tx),
		})
	})
}
