package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ledger-core/internal/config"
	"github.com/ledger-core/internal/data/mongo"
	"github.com/ledger-core/internal/data/postgres"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/logger"
	"github.com/ledger-core/internal/platform/messaging/consumers"
	"github.com/ledger-core/internal/platform/messaging/producers"
	"github.com/ledger-core/internal/platform/persistence"
	"github.com/ledger-core/internal/reconciliation"
	"github.com/ledger-core/internal/transaction_processor/components"
	"github.com/ledger-core/internal/transaction_processor/consumer"
	"github.com/ledger-core/internal/transaction_processor/outbox_poller"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("transaction_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Transaction Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// The processor shares ledger state with the gateway, so an in-process
	// store would diverge from it.
	if cfg.Storage.Driver != config.StorageDriverPostgres {
		log.Error("Transaction Processor requires postgres storage", "driver", cfg.Storage.Driver)
		os.Exit(1)
	}

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	unitOfWork := postgres.NewUnitOfWork(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	operationRepo := mongo.NewOperationRepository(log, mongoDB.Database())
	activityRepo := mongo.NewActivityRepository(log, mongoDB.Database())
	if err := activityRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create activity indexes", "error", err)
		os.Exit(1)
	}

	engine := ledger.NewEngine(
		unitOfWork,
		accountRepo,
		ledger.PolicyFromConfig(&cfg.Ledger),
		log,
	)

	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	processingService, stopWorkers := components.CreateProcessingService(engine, operationRepo, log, cfg)

	operationEventHandler := consumer.NewOperationEventHandler(log, processingService, deadLetters)

	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		outbox_poller.NewActivityProjector(outboxRepo, activityRepo, log),
		log,
	)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.OperationTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, operationEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
			return
		}
		<-kafkaConsumer.Done()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	if cfg.Reconciliation.Enabled {
		reconciler := reconciliation.NewReconciler(unitOfWork, accountRepo, cfg.Reconciliation.Concurrency, log.With("component", "reconciler"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Starting Reconciler", "interval", cfg.Reconciliation.Interval.String())
			reconciler.Start(appCtx, cfg.Reconciliation.Interval)
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	log.Info("Starting graceful shutdown...")
	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// in-flight operations finish before their stores go away
	stopWorkers()

	failed := serviceErr != nil
	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		failed = true
	}
	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
			failed = true
		}
	}
	postgresDB.Close()
	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		failed = true
	}

	if failed {
		log.Error("Transaction Processor shutdown completed with errors")
		return
	}
	log.Info("Transaction Processor shutdown completed successfully")
}
