package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/platform/messaging/producers"
)

// ErrIntakeUnavailable means the operation could not be handed to the broker.
var ErrIntakeUnavailable = errors.New("operation intake is unavailable")

type OperationServiceImpl struct {
	producer      producers.OperationPublisher
	operationRepo operation.Repository
	logger        *slog.Logger
}

func NewOperationService(logger *slog.Logger, producer producers.OperationPublisher, operationRepo operation.Repository) OperationService {
	return &OperationServiceImpl{
		producer:      producer,
		operationRepo: operationRepo,
		logger:        logger,
	}
}

// Submit publishes the request and records it as pending. The processor
// creates the result itself if it finishes first, so a duplicate on create
// is not an error.
func (s *OperationServiceImpl) Submit(ctx context.Context, request *operation.Request) (*operation.Result, bool, error) {
	if err := request.Validate(); err != nil {
		return nil, false, err
	}
	logger := s.logger.With("idempotency_key", request.IdempotencyKey, "correlation_id", request.CorrelationID)

	existing, err := s.operationRepo.GetByKey(ctx, request.IdempotencyKey)
	switch {
	case err == nil:
		logger.Info("Operation already submitted", "status", existing.Status)
		return existing, true, nil
	case !errors.Is(err, operation.ErrResultNotFound{}):
		return nil, false, fmt.Errorf("failed to look up operation %s: %w", request.IdempotencyKey, err)
	}

	if err := s.producer.Publish(ctx, request); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrIntakeUnavailable, err)
	}

	pending := operation.NewPendingResult(request)
	if err := s.operationRepo.Create(ctx, pending); err != nil && !errors.Is(err, operation.ErrDuplicateOperation{}) {
		logger.Error("Published operation but failed to record it as pending", "error", err)
	}

	logger.Info("Operation submitted", "type", request.Type, "account_id", request.AccountID.String(), "amount", request.Amount)
	return pending, false, nil
}

func (s *OperationServiceImpl) GetResult(ctx context.Context, key string) (*operation.Result, error) {
	return s.operationRepo.GetByKey(ctx, key)
}
