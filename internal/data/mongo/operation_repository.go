package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ledger-core/internal/domain/operation"
)

const (
	// OperationCollectionName holds one document per submitted operation, keyed by idempotency key.
	OperationCollectionName = "operation_results"
)

// OperationRepository implements operation.Repository for MongoDB.
type OperationRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewOperationRepository(logger *slog.Logger, db *mongo.Database) *OperationRepository {
	return &OperationRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a newly submitted operation. The idempotency key is the
// document id, so a second submission fails with ErrDuplicateOperation.
func (r *OperationRepository) Create(ctx context.Context, result *operation.Result) error {
	collection := r.db.Collection(OperationCollectionName)

	if _, err := collection.InsertOne(ctx, result); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return operation.ErrDuplicateOperation{Key: result.IdempotencyKey}
		}
		r.logger.Error("Failed to create operation result",
			"idempotency_key", result.IdempotencyKey,
			"error", err)
		return fmt.Errorf("failed to create operation result: %w", err)
	}
	return nil
}

func (r *OperationRepository) MarkCompleted(ctx context.Context, key string, transactionID uuid.UUID, newBalance int64) error {
	return r.update(ctx, key, bson.M{
		"status":         operation.StatusCompleted,
		"transaction_id": transactionID,
		"new_balance":    newBalance,
		"completed_at":   time.Now().UTC(),
	})
}

func (r *OperationRepository) MarkFailed(ctx context.Context, key string, reason string) error {
	return r.update(ctx, key, bson.M{
		"status":         operation.StatusFailed,
		"failure_reason": reason,
		"completed_at":   time.Now().UTC(),
	})
}

func (r *OperationRepository) update(ctx context.Context, key string, set bson.M) error {
	collection := r.db.Collection(OperationCollectionName)

	result, err := collection.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": set})
	if err != nil {
		r.logger.Error("Failed to update operation result",
			"idempotency_key", key,
			"status", fmt.Sprint(set["status"]),
			"error", err)
		return fmt.Errorf("failed to update operation result: %w", err)
	}
	if result.MatchedCount == 0 {
		return operation.ErrResultNotFound{Key: key}
	}
	return nil
}

func (r *OperationRepository) GetByKey(ctx context.Context, key string) (*operation.Result, error) {
	collection := r.db.Collection(OperationCollectionName)

	var result operation.Result
	if err := collection.FindOne(ctx, bson.M{"_id": key}).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, operation.ErrResultNotFound{Key: key}
		}
		r.logger.Error("Failed to get operation result",
			"idempotency_key", key,
			"error", err)
		return nil, fmt.Errorf("failed to get operation result: %w", err)
	}
	return &result, nil
}
