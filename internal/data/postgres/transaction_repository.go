package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/platform/persistence"
)

const idempotencyKeyIndex = "ledger_transactions_idempotency_key"

const (
	transactionColumns = `seq, id, account_id, type, direction, amount, source_account_id, destination_account_id,
		description, status, resulting_balance, COALESCE(idempotency_key, ''), correlation_id, created_at`

	appendTransactionSQL = `
		INSERT INTO ledger_transactions (id, account_id, type, direction, amount, source_account_id,
			destination_account_id, description, status, resulting_balance, idempotency_key, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)
		RETURNING seq`

	selectTransactionByIDSQL = `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE id = $1`

	selectTransactionByKeySQL = `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE idempotency_key = $1`

	selectTransactionsByCorrelationSQL = `SELECT ` + transactionColumns + `
		FROM ledger_transactions WHERE correlation_id = $1 ORDER BY seq`

	replayAccountSQL = `
		SELECT COALESCE(SUM(CASE WHEN direction = 'debit' THEN -amount ELSE amount END), 0), COUNT(*)
		FROM ledger_transactions
		WHERE account_id = $1 AND status = 'completed'`
)

// TransactionRepository implements transaction.Repository. The table is
// append-only; this type issues no UPDATE or DELETE statements.
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) *TransactionRepository {
	return &TransactionRepository{querier: db.Pool(), logger: logger}
}

func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{querier: tx, logger: r.logger}
}

func (r *TransactionRepository) Append(ctx context.Context, tx *transaction.Transaction) error {
	err := r.querier.QueryRow(ctx, appendTransactionSQL,
		tx.ID,
		tx.AccountID,
		tx.Type,
		tx.Direction,
		tx.Amount,
		tx.SourceAccountID,
		tx.DestinationAccountID,
		tx.Description,
		tx.Status,
		tx.ResultingBalance,
		tx.IdempotencyKey,
		tx.CorrelationID,
		tx.CreatedAt,
	).Scan(&tx.Sequence)
	if err != nil {
		if persistence.IsUniqueViolation(err, idempotencyKeyIndex) {
			return transaction.ErrDuplicateIdempotencyKey{Key: tx.IdempotencyKey}
		}
		r.logger.Error("Failed to append transaction", "transaction_id", tx.ID.String(), "error", err)
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	tx, err := scanTransaction(r.querier.QueryRow(ctx, selectTransactionByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{ID: id}
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	if key == "" {
		return nil, errors.New("idempotency key cannot be empty")
	}
	tx, err := scanTransaction(r.querier.QueryRow(ctx, selectTransactionByKeySQL, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction by idempotency key", "idempotency_key", key, "error", err)
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetByCorrelationID(ctx context.Context, correlationID uuid.UUID) ([]*transaction.Transaction, error) {
	rows, err := r.querier.Query(ctx, selectTransactionsByCorrelationSQL, correlationID)
	if err != nil {
		r.logger.Error("Failed to get transactions by correlation id", "correlation_id", correlationID.String(), "error", err)
		return nil, fmt.Errorf("failed to get transactions by correlation id: %w", err)
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) Query(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	where, args := buildWhere(filter)
	order := "DESC"
	if filter.Order == transaction.OrderOldestFirst {
		order = "ASC"
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + transactionColumns + " FROM ledger_transactions" + where + " ORDER BY seq " + order)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	rows, err := r.querier.Query(ctx, sb.String(), args...)
	if err != nil {
		r.logger.Error("Failed to query transactions", "account_id", filter.AccountID.String(), "error", err)
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) Count(ctx context.Context, filter transaction.Filter) (int64, error) {
	where, args := buildWhere(filter)

	var count int64
	if err := r.querier.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_transactions"+where, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "account_id", filter.AccountID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) Replay(ctx context.Context, accountID uuid.UUID) (*transaction.Replay, error) {
	replay := &transaction.Replay{AccountID: accountID}
	if err := r.querier.QueryRow(ctx, replayAccountSQL, accountID).Scan(&replay.Sum, &replay.Count); err != nil {
		r.logger.Error("Failed to replay account transactions", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to replay account transactions: %w", err)
	}
	return replay, nil
}

// buildWhere renders the filter as a WHERE clause with positional arguments.
func buildWhere(filter transaction.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.AccountID != uuid.Nil {
		add("account_id = ?", filter.AccountID)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		add("type = ANY(?)", types)
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if filter.From != nil {
		add("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		add("created_at < ?", *filter.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func collectTransactions(rows pgx.Rows) ([]*transaction.Transaction, error) {
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	err := row.Scan(
		&tx.Sequence,
		&tx.ID,
		&tx.AccountID,
		&tx.Type,
		&tx.Direction,
		&tx.Amount,
		&tx.SourceAccountID,
		&tx.DestinationAccountID,
		&tx.Description,
		&tx.Status,
		&tx.ResultingBalance,
		&tx.IdempotencyKey,
		&tx.CorrelationID,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
