package service

import (
	"context"

	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
)

// ProcessingService executes one asynchronously submitted operation.
type ProcessingService interface {
	ProcessOperation(ctx context.Context, request *operation.Request) error
}

// Executor is the slice of the ledger engine the processor drives.
type Executor interface {
	Execute(ctx context.Context, typ transaction.Type, req ledger.Request) (*ledger.Result, error)
}

// OperationValidator checks a request before it reaches the engine.
type OperationValidator interface {
	Validate(ctx context.Context, request *operation.Request) error
	// CheckIdempotency reports whether the operation already has a final outcome.
	CheckIdempotency(ctx context.Context, request *operation.Request) (bool, error)
}

// ResultRecorder stores the outcome of an operation for later lookup.
type ResultRecorder interface {
	RecordSuccess(ctx context.Context, request *operation.Request, result *ledger.Result) error
	RecordFailure(ctx context.Context, request *operation.Request, failureReason string) error
}
