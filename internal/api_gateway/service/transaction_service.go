package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID stores the request's correlation id for the engine's logs.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

type TransactionServiceImpl struct {
	ledger  Ledger
	history History
	logger  *slog.Logger
}

func NewTransactionService(logger *slog.Logger, l Ledger, history History) TransactionService {
	return &TransactionServiceImpl{
		ledger:  l,
		history: history,
		logger:  logger,
	}
}

// Execute applies the operation. A missing idempotency key is generated
// here so the caller can see which key to retry with.
func (s *TransactionServiceImpl) Execute(ctx context.Context, typ transaction.Type, req ledger.Request) (*ledger.Result, error) {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	if req.CorrelationID == "" {
		req.CorrelationID = correlationID(ctx)
	}

	res, err := s.ledger.Execute(ctx, typ, req)
	if err != nil {
		if ledger.KindOf(err) == ledger.KindInternal {
			s.logger.Error("Ledger operation failed",
				"type", typ,
				"account_id", req.AccountID.String(),
				"correlation_id", req.CorrelationID,
				"error", err,
			)
		}
		return nil, err
	}
	return res, nil
}

func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return s.history.GetTransaction(ctx, id)
}
