package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/domain/shared"
	"github.com/ledger-core/internal/ledger"
)

type ProcessingServiceImpl struct {
	executor  Executor
	validator OperationValidator
	recorder  ResultRecorder
	logger    *slog.Logger
}

func NewProcessingService(
	executor Executor,
	validator OperationValidator,
	recorder ResultRecorder,
	logger *slog.Logger,
) ProcessingService {
	return &ProcessingServiceImpl{
		executor:  executor,
		validator: validator,
		recorder:  recorder,
		logger:    logger,
	}
}

// ProcessOperation runs the request through the engine and records the
// outcome. Rejections are final and acknowledged; infrastructure and
// exhausted-retry errors are returned so the message is redelivered.
func (s *ProcessingServiceImpl) ProcessOperation(ctx context.Context, request *operation.Request) error {
	logger := s.logger.With("idempotency_key", request.IdempotencyKey)
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	if err := s.validator.Validate(ctx, request); err != nil {
		logger.Warn("Operation request rejected", "error", err)
		if recordErr := s.recorder.RecordFailure(ctx, request, string(shared.FailureReasonInvalidRequest)); recordErr != nil {
			logger.Error("Failed to record rejected operation", "error", recordErr)
		}
		return nil
	}

	done, err := s.validator.CheckIdempotency(ctx, request)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	result, err := s.executor.Execute(ctx, request.Type, ledger.Request{
		IdempotencyKey:    request.IdempotencyKey,
		AccountID:         request.AccountID,
		DestinationNumber: request.DestinationNumber,
		Amount:            request.Amount,
		Description:       request.Description,
		CorrelationID:     request.CorrelationID,
	})
	if err != nil {
		switch ledger.KindOf(err) {
		case ledger.KindValidation, ledger.KindNotFound, ledger.KindConflict:
			reason := string(ledger.Code(err))
			logger.Info("Operation rejected by ledger", "type", request.Type, "reason", reason)
			if recordErr := s.recorder.RecordFailure(ctx, request, reason); recordErr != nil {
				logger.Error("Failed to record operation failure", "error", recordErr)
			}
			return nil
		}
		logger.Error("Operation failed, leaving message for redelivery", "type", request.Type, "error", err)
		return fmt.Errorf("operation %s failed: %w", request.IdempotencyKey, err)
	}

	if err := s.recorder.RecordSuccess(ctx, request, result); err != nil {
		// the engine replays the key on redelivery, so retrying is safe
		return fmt.Errorf("operation %s applied but its result was not recorded: %w", request.IdempotencyKey, err)
	}

	logger.Info("Operation applied",
		"type", request.Type,
		"transaction_id", result.TransactionID.String(),
		"new_balance", result.NewBalance,
		"replayed", result.Replayed,
	)
	return nil
}
