package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"warden/internal/constants"
	"warden/pkg/models"
)

type Repository interface {
	Record(ctx context.Context, action models.Action) error
	List(ctx context.Context, filter ListFilter) ([]ActionRecord, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("action_history"),
	}
}

func (r *mongoRepository) Record(ctx context.Context, action models.Action) error {
	record := recordFromAction(action)
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.RecordedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Same action dispatched twice (retry after a partial
			// failure); the first write already captured it.
			return nil
		}
		return fmt.Errorf("failed to record action: %w", err)
	}

	return nil
}

func (r *mongoRepository) List(ctx context.Context, filter ListFilter) ([]ActionRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "issued_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(filter.Offset))

	cursor, err := r.collection.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []ActionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}

	return records, nil
}

func (r *mongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, buildQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count actions: %w", err)
	}
	return count, nil
}

func buildQuery(filter ListFilter) bson.M {
	query := bson.M{"group_id": filter.GroupID}
	if filter.UserID != 0 {
		query["user_id"] = filter.UserID
	}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	return query
}
