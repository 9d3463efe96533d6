package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection("action_history")

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "issued_at", Value: -1}},
			Options: options.Index().SetName("idx_action_history_group_issued"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "issued_at", Value: -1}},
			Options: options.Index().SetName("idx_action_history_group_user_issued"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "issued_at", Value: -1}},
			Options: options.Index().SetName("idx_action_history_group_kind_issued"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
