package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ImportSession is the workflow state of one operator bulk-forwarding historical
// content into a target collection. At most one session may be active per user
// at any time; the state machine enforces this, not the store.
type ImportSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       int64              `bson:"user_id"`    // Telegram user id of the operator
	AccountID    string             `bson:"account_id"` // mapped platform account
	CollectionID int64              `bson:"collection_id"`
	MessageCount int                `bson:"message_count"`
	Active       bool               `bson:"active"`
	CreatedAt    time.Time          `bson:"created_at"`
	CompletedAt  *time.Time         `bson:"completed_at,omitempty"`
}

// Account maps a Telegram user to a platform account. Rows are created by the
// account provisioning flow, which is outside this service; the import session
// machine only reads them.
type Account struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	TelegramUserID int64              `bson:"telegram_user_id"`
	AccountID      string             `bson:"account_id"`
	CreatedAt      time.Time          `bson:"created_at"`
}
