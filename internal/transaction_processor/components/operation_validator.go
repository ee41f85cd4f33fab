// Package components holds the pieces the operation processor is assembled from.
package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/transaction_processor/service"
)

type OperationValidatorImpl struct {
	operationRepo operation.Repository
	logger        *slog.Logger
}

func NewOperationValidator(operationRepo operation.Repository, logger *slog.Logger) service.OperationValidator {
	return &OperationValidatorImpl{
		operationRepo: operationRepo,
		logger:        logger,
	}
}

// Validate checks the message shape. Amounts, limits and account state are
// checked by the engine.
func (v *OperationValidatorImpl) Validate(ctx context.Context, request *operation.Request) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("invalid operation request %q: %w", request.IdempotencyKey, err)
	}
	return nil
}

func (v *OperationValidatorImpl) CheckIdempotency(ctx context.Context, request *operation.Request) (bool, error) {
	existing, err := v.operationRepo.GetByKey(ctx, request.IdempotencyKey)
	if errors.Is(err, operation.ErrResultNotFound{}) {
		return false, nil
	}
	if err != nil {
		v.logger.Error("Failed to look up operation result", "idempotency_key", request.IdempotencyKey, "error", err)
		return false, fmt.Errorf("idempotency check failed for operation %s: %w", request.IdempotencyKey, err)
	}

	switch existing.Status {
	case operation.StatusCompleted, operation.StatusFailed:
		v.logger.Info("Operation already finished, skipping", "idempotency_key", request.IdempotencyKey, "status", existing.Status)
		return true, nil
	}
	return false, nil
}
