package database

import (
	"context"
	"fmt"
	"time"

	"chanfeed-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	botConfigCollectionName  = "bot_configs"
	linkedChatCollectionName = "linked_chats"
)

// MongoBotConfigRepository implements BotConfigRepository for MongoDB.
type MongoBotConfigRepository struct {
	collection *mongo.Collection
}

// NewMongoBotConfigRepository creates a new MongoDB bot config repository.
func NewMongoBotConfigRepository(db *mongo.Database) *MongoBotConfigRepository {
	return &MongoBotConfigRepository{
		collection: db.Collection(botConfigCollectionName),
	}
}

// GetByToken returns the bot config row matching the given token.
// Returns ErrBotConfigNotFound if the bot is not provisioned.
func (r *MongoBotConfigRepository) GetByToken(ctx context.Context, token string) (*models.BotConfig, error) {
	var cfg models.BotConfig
	filter := bson.M{"token": token}

	err := r.collection.FindOne(ctx, filter).Decode(&cfg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrBotConfigNotFound
		}
		return nil, fmt.Errorf("failed to find bot config: %w", err)
	}
	return &cfg, nil
}

// SetWebhookStatus records whether the webhook is currently registered.
func (r *MongoBotConfigRepository) SetWebhookStatus(ctx context.Context, token string, registered bool) error {
	filter := bson.M{"token": token}
	update := bson.M{"$set": bson.M{"webhook_set": registered, "updated_at": time.Now()}}

	_, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update webhook status: %w", err)
	}
	return nil
}

// MongoLinkedChatRepository implements LinkedChatRepository for MongoDB.
type MongoLinkedChatRepository struct {
	collection *mongo.Collection
}

// NewMongoLinkedChatRepository creates a new MongoDB linked chat repository.
func NewMongoLinkedChatRepository(db *mongo.Database) *MongoLinkedChatRepository {
	return &MongoLinkedChatRepository{
		collection: db.Collection(linkedChatCollectionName),
	}
}

// ListActiveByChatID returns all active fan-out bindings for the given chat id.
func (r *MongoLinkedChatRepository) ListActiveByChatID(ctx context.Context, chatID int64) ([]models.LinkedChat, error) {
	filter := bson.M{"chat_id": chatID, "active": true}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find linked chats for chat %d: %w", chatID, err)
	}
	defer cursor.Close(ctx)

	var chats []models.LinkedChat
	if err = cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode linked chats for chat %d: %w", chatID, err)
	}
	return chats, nil
}
