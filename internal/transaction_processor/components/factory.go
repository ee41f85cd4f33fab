package components

import (
	"log/slog"

	"github.com/ledger-core/internal/config"
	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/transaction_processor/service"
)

// CreateProcessingService wires the processor around executor and returns a
// function that releases its worker pool.
func CreateProcessingService(
	executor service.Executor,
	operationRepo operation.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) (service.ProcessingService, func()) {
	baseService := service.NewProcessingService(
		executor,
		NewOperationValidator(operationRepo, logger),
		NewResultRecorder(operationRepo, logger),
		logger,
	)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService, func() {}
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService, workerPoolService.Shutdown
}
