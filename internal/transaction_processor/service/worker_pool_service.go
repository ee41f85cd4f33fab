package service

import (
	"context"
	"log/slog"

	"github.com/ledger-core/internal/domain/operation"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolProcessingService runs operations on a bounded ants pool. Each
// call blocks until its operation finishes so the consumer commits offsets
// only after the outcome is known.
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

func (s *WorkerPoolProcessingService) ProcessOperation(ctx context.Context, request *operation.Request) error {
	resultChan := make(chan error, 1)
	requestCopy := *request

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.ProcessOperation(ctx, &requestCopy)
	})
	if err != nil {
		s.logger.Error("Failed to submit operation to worker pool",
			"idempotency_key", request.IdempotencyKey,
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		// the worker still finishes; its result is dropped
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
