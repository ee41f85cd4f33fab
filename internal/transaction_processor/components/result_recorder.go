package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/transaction_processor/service"
)

type ResultRecorderImpl struct {
	operationRepo operation.Repository
	logger        *slog.Logger
}

func NewResultRecorder(operationRepo operation.Repository, logger *slog.Logger) service.ResultRecorder {
	return &ResultRecorderImpl{
		operationRepo: operationRepo,
		logger:        logger,
	}
}

func (r *ResultRecorderImpl) RecordSuccess(ctx context.Context, request *operation.Request, result *ledger.Result) error {
	return r.record(ctx, request, func() error {
		return r.operationRepo.MarkCompleted(ctx, request.IdempotencyKey, result.TransactionID, result.NewBalance)
	})
}

func (r *ResultRecorderImpl) RecordFailure(ctx context.Context, request *operation.Request, failureReason string) error {
	r.logger.Info("Recording failed operation", "idempotency_key", request.IdempotencyKey, "reason", failureReason)
	return r.record(ctx, request, func() error {
		return r.operationRepo.MarkFailed(ctx, request.IdempotencyKey, failureReason)
	})
}

// record applies mark to the stored result. Messages produced outside the
// gateway have no pending result yet, so one is created first.
func (r *ResultRecorderImpl) record(ctx context.Context, request *operation.Request, mark func() error) error {
	err := mark()
	if !errors.Is(err, operation.ErrResultNotFound{}) {
		return err
	}

	if err := r.operationRepo.Create(ctx, operation.NewPendingResult(request)); err != nil && !errors.Is(err, operation.ErrDuplicateOperation{}) {
		return fmt.Errorf("failed to create result for operation %s: %w", request.IdempotencyKey, err)
	}
	return mark()
}
