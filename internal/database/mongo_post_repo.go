package database

import (
	"context"
	"fmt"
	"time"

	"chanfeed-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	postCollectionName      = "posts"
	postMediaCollectionName = "post_media"
)

// MongoPostRepository implements PostRepository for MongoDB.
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoDB post repository.
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{
		collection: db.Collection(postCollectionName),
	}
}

// Exists reports whether a post for (collection id, source message id) was
// already ingested. Errored placeholder rows count too, so a redelivery of a
// failed item does not produce a second row.
func (r *MongoPostRepository) Exists(ctx context.Context, collectionID int64, messageID int) (bool, error) {
	filter := bson.M{"collection_id": collectionID, "message_id": messageID}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to count posts for collection %d message %d: %w", collectionID, messageID, err)
	}
	return count > 0, nil
}

// Create inserts a new post row.
func (r *MongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, post)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// MongoPostMediaRepository implements PostMediaRepository for MongoDB.
type MongoPostMediaRepository struct {
	collection *mongo.Collection
}

// NewMongoPostMediaRepository creates a new MongoDB post media repository.
func NewMongoPostMediaRepository(db *mongo.Database) *MongoPostMediaRepository {
	return &MongoPostMediaRepository{
		collection: db.Collection(postMediaCollectionName),
	}
}

// Create inserts one group member row.
func (r *MongoPostMediaRepository) Create(ctx context.Context, media *models.PostMedia) error {
	media.ID = primitive.NewObjectID()
	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, media)
	if err != nil {
		return fmt.Errorf("failed to insert post media: %w", err)
	}
	return nil
}
