package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledger-core/internal/api_gateway"
	"github.com/ledger-core/internal/api_gateway/service"
	"github.com/ledger-core/internal/config"
	"github.com/ledger-core/internal/data/memory"
	"github.com/ledger-core/internal/data/mongo"
	"github.com/ledger-core/internal/data/postgres"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/activity"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/logger"
	"github.com/ledger-core/internal/platform/messaging/producers"
	"github.com/ledger-core/internal/platform/persistence"
	"github.com/ledger-core/internal/statement"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	var (
		store        ledger.Store
		accounts     account.Repository
		transactions transaction.Repository
		postgresDB   *persistence.PostgresDB
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		postgresDB, err = persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
		if err != nil {
			log.Error("Failed to initialize PostgreSQL", "error", err)
			os.Exit(1)
		}
		store = postgres.NewUnitOfWork(log, postgresDB)
		accounts = postgres.NewAccountRepository(log, postgresDB)
		transactions = postgres.NewTransactionRepository(log, postgresDB)
	case config.StorageDriverMemory:
		log.Warn("Using in-memory ledger storage, balances are lost on restart")
		memStore := memory.NewStore(log)
		store = memStore
		accounts = memStore.Accounts()
		transactions = memStore.Transactions()
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}
	operationRepo := mongo.NewOperationRepository(log, mongoDB.Database())

	// The activity projection is fed from the Postgres outbox, so it only
	// exists next to Postgres storage.
	var activities activity.Repository
	if cfg.Storage.Driver == config.StorageDriverPostgres {
		activityRepo := mongo.NewActivityRepository(log, mongoDB.Database())
		if err := activityRepo.EnsureIndexes(appCtx); err != nil {
			log.Error("Failed to create activity indexes", "error", err)
			os.Exit(1)
		}
		activities = activityRepo
	}

	operationProducer, err := producers.NewOperationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize operation Kafka producer", "error", err)
		os.Exit(1)
	}

	engine := ledger.NewEngine(store, accounts, ledger.PolicyFromConfig(&cfg.Ledger), log)
	reader := statement.NewReader(accounts, transactions, activities, log)

	accountService := service.NewAccountService(log, engine, reader)
	transactionService := service.NewTransactionService(log, engine, reader)
	operationService := service.NewOperationService(log, operationProducer, operationRepo)

	server := api_gateway.NewServer(log, cfg, accountService, transactionService, operationService)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()
	shutdown(log, cfg, server, operationProducer, mongoDB, postgresDB, serverErr)
}

// shutdown stops intake first, then releases the stores the requests used.
func shutdown(
	log *slog.Logger,
	cfg *config.Config,
	server *api_gateway.Server,
	producer *producers.OperationProducer,
	mongoDB *persistence.MongoDB,
	postgresDB *persistence.PostgresDB,
	serverErr error,
) {
	log.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	failed := serverErr != nil
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		failed = true
	}
	if err := producer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
		failed = true
	}
	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		failed = true
	}
	if postgresDB != nil {
		postgresDB.Close()
	}

	if failed {
		log.Error("Server shutdown completed with errors")
		return
	}
	log.Info("Server shutdown completed successfully")
}
