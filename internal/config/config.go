// Package config loads and validates the settings shared by the ledger binaries.
package config

import (
	"errors"
	"strings"
	"time"
)

// Storage drivers understood by StorageConfig.Driver.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config is the full set of settings for one binary. Sections that a binary
// does not use are still loaded with defaults so both binaries share a loader.
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	Storage        StorageConfig
	Kafka          KafkaConfig
	Postgres       PostgresConfig
	MongoDB        MongoDBConfig
	Outbox         OutboxConfig
	WorkerPool     WorkerPoolConfig
	Ledger         LedgerConfig
	Reconciliation ReconciliationConfig
}

type ApplicationConfig struct {
	Env  string
	Name string
}

type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// StorageConfig selects the backend for accounts and the transaction log.
type StorageConfig struct {
	Driver string // postgres or memory
}

// KafkaConfig contains the async operation topic settings.
type KafkaConfig struct {
	Brokers           string
	OperationTopic    string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig controls projection of committed records into MongoDB.
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

type WorkerPoolConfig struct {
	Size int
}

// LedgerConfig holds the monetary policy of the engine. Amounts are minor units.
type LedgerConfig struct {
	MinimumBalance       int64
	DepositCeiling       int64
	WithdrawalCeiling    int64
	TransferCeiling      int64
	MaxDescriptionLength int
	MaxRetries           uint
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	NewAccountStatus     string
}

// ReconciliationConfig controls the periodic audit pass in the processor.
type ReconciliationConfig struct {
	Enabled     bool
	Interval    time.Duration
	Concurrency int
}

func (c *Config) validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Server.Port > 0, "SERVER_PORT must be greater than 0")
	check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	check(c.Server.ReadTimeout > 0, "SERVER_READ_TIMEOUT must be greater than 0")
	check(c.Server.WriteTimeout > 0, "SERVER_WRITE_TIMEOUT must be greater than 0")
	check(c.Server.IdleTimeout > 0, "SERVER_IDLE_TIMEOUT must be greater than 0")

	check(c.Storage.Driver == StorageDriverPostgres || c.Storage.Driver == StorageDriverMemory,
		"STORAGE_DRIVER must be one of postgres, memory")

	check(c.Kafka.Brokers != "", "KAFKA_BROKERS is required")
	check(c.Kafka.OperationTopic != "", "KAFKA_OPERATION_TOPIC is required")
	check(c.Kafka.ConsumerGroup != "", "KAFKA_CONSUMER_GROUP is required")
	check(c.Kafka.MinBytes > 0, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	check(c.Kafka.MaxBytes > 0, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	check(c.Kafka.MaxWait > 0, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	check(c.Kafka.DLQTopic != "", "KAFKA_DLQ_TOPIC is required")

	if c.Storage.Driver == StorageDriverPostgres {
		check(c.Postgres.URL != "", "POSTGRES_URL is required")
		check(c.Postgres.MaxConns > 0, "POSTGRES_MAX_CONNS must be greater than 0")
		check(c.Postgres.MinConns > 0, "POSTGRES_MIN_CONNS must be greater than 0")
		check(c.Postgres.ConnMaxLifetime > 0, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
		check(c.Postgres.ConnMaxIdleTime > 0, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	check(c.MongoDB.URI != "", "MONGO_URI is required")
	check(c.MongoDB.Database != "", "MONGO_DATABASE is required")
	check(c.MongoDB.Timeout > 0, "MONGO_TIMEOUT must be greater than 0")
	check(c.MongoDB.MaxPoolSize > 0, "MONGO_MAX_POOL_SIZE must be greater than 0")
	check(c.MongoDB.MaxConnIdleTime > 0, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")

	check(c.Outbox.PollingInterval > 0, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	check(c.Outbox.BatchSize > 0, "OUTBOX_BATCH_SIZE must be greater than 0")
	check(c.Outbox.MaxRetryAttempts > 0, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")

	check(c.WorkerPool.Size > 0, "WORKER_POOL_SIZE must be greater than 0")

	check(c.Ledger.MinimumBalance >= 0, "LEDGER_MINIMUM_BALANCE must not be negative")
	check(c.Ledger.DepositCeiling > 0, "LEDGER_DEPOSIT_CEILING must be greater than 0")
	check(c.Ledger.WithdrawalCeiling > 0, "LEDGER_WITHDRAWAL_CEILING must be greater than 0")
	check(c.Ledger.TransferCeiling > 0, "LEDGER_TRANSFER_CEILING must be greater than 0")
	check(c.Ledger.MaxDescriptionLength > 0, "LEDGER_MAX_DESCRIPTION_LENGTH must be greater than 0")
	check(c.Ledger.MaxRetries > 0, "LEDGER_MAX_RETRIES must be greater than 0")
	check(c.Ledger.RetryInitialInterval > 0, "LEDGER_RETRY_INITIAL_INTERVAL must be greater than 0")
	check(c.Ledger.RetryMaxInterval >= c.Ledger.RetryInitialInterval,
		"LEDGER_RETRY_MAX_INTERVAL must not be lower than LEDGER_RETRY_INITIAL_INTERVAL")
	check(c.Ledger.NewAccountStatus == "active" || c.Ledger.NewAccountStatus == "pending",
		"LEDGER_NEW_ACCOUNT_STATUS must be one of active, pending")

	if c.Reconciliation.Enabled {
		check(c.Reconciliation.Interval > 0, "RECONCILIATION_INTERVAL must be greater than 0")
		check(c.Reconciliation.Concurrency > 0, "RECONCILIATION_CONCURRENCY must be greater than 0")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, ", "))
	}
	return nil
}
