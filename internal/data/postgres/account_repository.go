// Package postgres implements the account, transaction log and outbox
// repositories on PostgreSQL. Every repository can be bound to a pgx.Tx with
// WithTx so a whole ledger operation commits or rolls back as one unit.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/platform/persistence"
)

const accountNumberConstraint = "accounts_number_key"

const (
	accountColumns = `id, number, owner_id, balance, status, version, created_at, updated_at`

	insertAccountSQL = `
		INSERT INTO accounts (id, number, owner_id, balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	selectAccountByIDSQL     = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	selectAccountByNumberSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE number = $1`
	lockAccountSQL           = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	casBalanceSQL = `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND balance = $3`

	updateAccountStatusSQL = `
		UPDATE accounts
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2`

	listAccountIDsSQL = `SELECT id FROM accounts WHERE id > $1 ORDER BY id LIMIT $2`
)

// AccountRepository implements account.Repository.
type AccountRepository struct {
	querier persistence.Querier // pool or pgx.Tx
	logger  *slog.Logger
}

func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) *AccountRepository {
	return &AccountRepository{querier: db.Pool(), logger: logger}
}

// WithTx returns a copy of the repository that runs every statement in tx.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	return &AccountRepository{querier: tx, logger: r.logger}
}

func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	_, err := r.querier.Exec(ctx, insertAccountSQL,
		acc.ID,
		acc.Number,
		acc.OwnerID,
		acc.Balance,
		acc.Status,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err, accountNumberConstraint) {
			return account.ErrDuplicateAccountNumber{Number: acc.Number}
		}
		r.logger.Error("Failed to create account", "account_id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, selectAccountByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "account_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*account.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, selectAccountByNumberSQL, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Number: number}
		}
		r.logger.Error("Failed to get account by number", "number", number, "error", err)
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}
	return acc, nil
}

// LockForUpdate takes a row lock that lasts until the enclosing transaction
// ends. Outside a transaction the lock is released immediately.
func (r *AccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, lockAccountSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to lock account for update", "account_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock account for update: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) CompareAndSwapBalance(ctx context.Context, id uuid.UUID, expected, newBalance int64) error {
	result, err := r.querier.Exec(ctx, casBalanceSQL, newBalance, id, expected)
	if err != nil {
		r.logger.Error("Failed to update account balance", "account_id", id.String(), "error", err)
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountID: id}
	}
	return nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status account.Status) error {
	result, err := r.querier.Exec(ctx, updateAccountStatusSQL, status, id)
	if err != nil {
		r.logger.Error("Failed to update account status", "account_id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{AccountID: id}
	}
	return nil
}

func (r *AccountRepository) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.querier.Query(ctx, listAccountIDsSQL, after, limit)
	if err != nil {
		r.logger.Error("Failed to list account ids", "error", err)
		return nil, fmt.Errorf("failed to list account ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan account ids: %w", err)
	}
	return ids, nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID,
		&acc.Number,
		&acc.OwnerID,
		&acc.Balance,
		&acc.Status,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
