package database

import (
	"context"
	"fmt"
	"time"

	"chanfeed-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const bufferCollectionName = "media_group_buffer"

// MongoMediaGroupBufferRepository implements MediaGroupBufferRepository for MongoDB.
type MongoMediaGroupBufferRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaGroupBufferRepository creates a new MongoDB media group buffer repository.
func NewMongoMediaGroupBufferRepository(db *mongo.Database) *MongoMediaGroupBufferRepository {
	return &MongoMediaGroupBufferRepository{
		collection: db.Collection(bufferCollectionName),
	}
}

// Insert appends one group member to the buffer.
func (r *MongoMediaGroupBufferRepository) Insert(ctx context.Context, entry *models.MediaGroupBufferEntry) error {
	entry.ID = primitive.NewObjectID()
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to insert media group buffer entry: %w", err)
	}
	return nil
}

// ListByKey returns all buffered entries for (group id, collection id) ordered
// by source message id ascending.
func (r *MongoMediaGroupBufferRepository) ListByKey(ctx context.Context, groupID string, collectionID int64) ([]models.MediaGroupBufferEntry, error) {
	filter := bson.M{"group_id": groupID, "collection_id": collectionID}

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "message_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find buffer entries for group %s: %w", groupID, err)
	}
	defer cursor.Close(ctx)

	var entries []models.MediaGroupBufferEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode buffer entries for group %s: %w", groupID, err)
	}
	return entries, nil
}

// DeleteByKey removes all buffered entries for (group id, collection id).
func (r *MongoMediaGroupBufferRepository) DeleteByKey(ctx context.Context, groupID string, collectionID int64) error {
	filter := bson.M{"group_id": groupID, "collection_id": collectionID}

	_, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete buffer entries for group %s: %w", groupID, err)
	}
	return nil
}
