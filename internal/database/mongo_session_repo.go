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
	sessionCollectionName = "import_sessions"
	accountCollectionName = "accounts"
)

// MongoImportSessionRepository implements ImportSessionRepository for MongoDB.
type MongoImportSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoImportSessionRepository creates a new MongoDB import session repository.
func NewMongoImportSessionRepository(db *mongo.Database) *MongoImportSessionRepository {
	return &MongoImportSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// FindActiveByUserID returns the active session for the user.
// Returns ErrSessionNotFound when the user has no active session.
func (r *MongoImportSessionRepository) FindActiveByUserID(ctx context.Context, userID int64) (*models.ImportSession, error) {
	var session models.ImportSession
	filter := bson.M{"user_id": userID, "active": true}

	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find active session for user %d: %w", userID, err)
	}
	return &session, nil
}

// Create inserts a new session row.
func (r *MongoImportSessionRepository) Create(ctx context.Context, session *models.ImportSession) error {
	session.ID = primitive.NewObjectID()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to insert import session: %w", err)
	}
	return nil
}

// IncrementCounter bumps the ingested message counter by one.
func (r *MongoImportSessionRepository) IncrementCounter(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{"message_count": 1}}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to increment counter for session %s: %w", id.Hex(), err)
	}
	return nil
}

// Close marks the session inactive and records the completion time.
func (r *MongoImportSessionRepository) Close(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"active": false, "completed_at": time.Now()}}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to close session %s: %w", id.Hex(), err)
	}
	return nil
}

// MongoAccountRepository implements AccountRepository for MongoDB.
type MongoAccountRepository struct {
	collection *mongo.Collection
}

// NewMongoAccountRepository creates a new MongoDB account repository.
func NewMongoAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{
		collection: db.Collection(accountCollectionName),
	}
}

// FindByTelegramID returns the platform account mapped to a Telegram user.
// Returns ErrAccountNotFound for unprovisioned users.
func (r *MongoAccountRepository) FindByTelegramID(ctx context.Context, userID int64) (*models.Account, error) {
	var account models.Account
	filter := bson.M{"telegram_user_id": userID}

	err := r.collection.FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account for user %d: %w", userID, err)
	}
	return &account, nil
}
