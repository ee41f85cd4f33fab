// Package service is the gateway's application layer between HTTP handlers
// and the ledger engine, statement reader and asynchronous intake.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/activity"
	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/statement"
)

// AccountService covers the account lifecycle and read models.
type AccountService interface {
	OpenAccount(ctx context.Context, ownerID string, initialBalance int64) (*account.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetBalance(ctx context.Context, id uuid.UUID) (int64, error)
	// CloseAccount refuses accounts with a balance or pending records.
	CloseAccount(ctx context.Context, id uuid.UUID) (*account.Account, error)
	ListTransactions(ctx context.Context, id uuid.UUID, page, perPage int) (*statement.Page, error)
	Statement(ctx context.Context, id uuid.UUID, page, perPage int) (*statement.Statement, error)
	Summary(ctx context.Context, id uuid.UUID) (*activity.Summary, error)
}

// TransactionService applies balance changes synchronously.
type TransactionService interface {
	Execute(ctx context.Context, typ transaction.Type, req ledger.Request) (*ledger.Result, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
}

// OperationService accepts operations for asynchronous execution.
type OperationService interface {
	// Submit returns the existing result and true when the key was already submitted.
	Submit(ctx context.Context, request *operation.Request) (*operation.Result, bool, error)
	GetResult(ctx context.Context, key string) (*operation.Result, error)
}

// Ledger is the part of the engine the gateway uses.
type Ledger interface {
	OpenAccount(ctx context.Context, req ledger.OpenAccountRequest) (*account.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	CloseAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	Execute(ctx context.Context, typ transaction.Type, req ledger.Request) (*ledger.Result, error)
}

// History is the part of the statement reader the gateway uses.
type History interface {
	ListTransactions(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*statement.Page, error)
	Statement(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*statement.Statement, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	Summary(ctx context.Context, accountID uuid.UUID) (*activity.Summary, error)
}
