package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BotConfig is the stored identity of a configured bot. Rows are managed by the
// operator tooling; this service reads them at startup and only ever writes the
// webhook registration flag back.
type BotConfig struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Token        string             `bson:"token"`
	ChannelID    int64              `bson:"channel_id,omitempty"`    // primary bound channel, optional
	CollectionID int64              `bson:"collection_id,omitempty"` // bound collection, optional
	Active       bool               `bson:"active"`
	WebhookSet   bool               `bson:"webhook_set"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// LinkedChat is a fan-out binding between a bot and an external chat, each
// optionally bound to a collection. Unique on (bot id, chat id); created by an
// operator action and consumed by the channel router.
type LinkedChat struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	BotID        primitive.ObjectID `bson:"bot_id,omitempty"`
	ChatID       int64              `bson:"chat_id"`
	CollectionID int64              `bson:"collection_id,omitempty"`
	Active       bool               `bson:"active"`
	CreatedAt    time.Time          `bson:"created_at"`
}
