// Package mongo stores the read-side activity projection and asynchronous
// operation results in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ledger-core/internal/domain/activity"
	"github.com/ledger-core/internal/domain/transaction"
)

const (
	// ActivityCollectionName holds one projected entry per transaction record.
	ActivityCollectionName = "ledger_entries"
)

// ActivityRepository implements activity.Repository for MongoDB.
type ActivityRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewActivityRepository(logger *slog.Logger, db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique transaction index and the per-account index.
func (r *ActivityRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(ActivityCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "sequence", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create activity indexes: %w", err)
	}
	return nil
}

// Upsert replaces the entry for its transaction, inserting it when absent.
// Publishing the same record twice leaves a single entry.
func (r *ActivityRepository) Upsert(ctx context.Context, entry *activity.Entry) error {
	collection := r.db.Collection(ActivityCollectionName)

	filter := bson.M{"transaction_id": entry.TransactionID}
	opts := options.Replace().SetUpsert(true)
	if _, err := collection.ReplaceOne(ctx, filter, entry, opts); err != nil {
		r.logger.Error("Failed to upsert activity entry",
			"transaction_id", entry.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to upsert activity entry: %w", err)
	}
	return nil
}

func (r *ActivityRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*activity.Entry, error) {
	collection := r.db.Collection(ActivityCollectionName)

	var entry activity.Entry
	err := collection.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, activity.ErrEntryNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get activity entry",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get activity entry: %w", err)
	}
	return &entry, nil
}

type summaryBucket struct {
	ID struct {
		Type      transaction.Type      `bson:"type"`
		Direction transaction.Direction `bson:"direction"`
	} `bson:"_id"`
	Total int64 `bson:"total"`
	Count int64 `bson:"count"`
}

// Summarize totals the account's projected entries per type and direction.
// An account with no entries yields a zero summary.
func (r *ActivityRepository) Summarize(ctx context.Context, accountID uuid.UUID) (*activity.Summary, error) {
	collection := r.db.Collection(ActivityCollectionName)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"account_id": accountID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"type": "$type", "direction": "$direction"},
			"total": bson.M{"$sum": "$amount"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to summarize account activity",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to summarize account activity: %w", err)
	}
	defer cursor.Close(ctx)

	var buckets []summaryBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("failed to decode activity summary: %w", err)
	}

	summary := &activity.Summary{AccountID: accountID}
	for _, b := range buckets {
		summary.Add(b.ID.Type, b.ID.Direction, b.Total, b.Count)
	}
	return summary, nil
}
