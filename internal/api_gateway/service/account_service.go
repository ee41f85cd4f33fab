package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/activity"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/statement"
)

type AccountServiceImpl struct {
	ledger  Ledger
	history History
	logger  *slog.Logger
}

func NewAccountService(logger *slog.Logger, l Ledger, history History) AccountService {
	return &AccountServiceImpl{
		ledger:  l,
		history: history,
		logger:  logger,
	}
}

func (s *AccountServiceImpl) OpenAccount(ctx context.Context, ownerID string, initialBalance int64) (*account.Account, error) {
	return s.ledger.OpenAccount(ctx, ledger.OpenAccountRequest{
		OwnerID:        ownerID,
		InitialBalance: initialBalance,
		CorrelationID:  correlationID(ctx),
	})
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.ledger.GetAccount(ctx, id)
}

func (s *AccountServiceImpl) GetBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.ledger.GetBalance(ctx, id)
}

func (s *AccountServiceImpl) CloseAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	acc, err := s.ledger.CloseAccount(ctx, id)
	if err != nil {
		s.logger.Info("Account close refused", "account_id", id.String(), "reason", ledger.Code(err))
		return nil, err
	}
	return acc, nil
}

func (s *AccountServiceImpl) ListTransactions(ctx context.Context, id uuid.UUID, page, perPage int) (*statement.Page, error) {
	return s.history.ListTransactions(ctx, id, page, perPage)
}

func (s *AccountServiceImpl) Statement(ctx context.Context, id uuid.UUID, page, perPage int) (*statement.Statement, error) {
	return s.history.Statement(ctx, id, page, perPage)
}

func (s *AccountServiceImpl) Summary(ctx context.Context, id uuid.UUID) (*activity.Summary, error) {
	return s.history.Summary(ctx, id)
}
