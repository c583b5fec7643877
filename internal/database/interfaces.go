package database

import (
	"context"
	"errors"

	"chanfeed-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sentinel errors returned by repositories for missing rows.
var (
	ErrBotConfigNotFound = errors.New("bot config not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrSessionNotFound   = errors.New("import session not found")
)

// BotConfigRepository reads the stored bot identity. The core treats the row as
// read-only except for the webhook registration flag.
type BotConfigRepository interface {
	// GetByToken returns the config row for the given bot token.
	// Returns ErrBotConfigNotFound if the bot is not provisioned.
	GetByToken(ctx context.Context, token string) (*models.BotConfig, error)
	// SetWebhookStatus records whether the webhook is currently registered.
	SetWebhookStatus(ctx context.Context, token string, registered bool) error
}

// LinkedChatRepository resolves fan-out bindings for the channel router.
type LinkedChatRepository interface {
	// ListActiveByChatID returns all active bindings for the given chat id.
	ListActiveByChatID(ctx context.Context, chatID int64) ([]models.LinkedChat, error)
}

// AccountRepository maps Telegram users to platform accounts.
type AccountRepository interface {
	// FindByTelegramID returns the account mapped to the given Telegram user.
	// Returns ErrAccountNotFound if the user is not provisioned.
	FindByTelegramID(ctx context.Context, userID int64) (*models.Account, error)
}

// ImportSessionRepository persists the import session workflow state.
type ImportSessionRepository interface {
	// FindActiveByUserID returns the active session for the user, or
	// ErrSessionNotFound when there is none.
	FindActiveByUserID(ctx context.Context, userID int64) (*models.ImportSession, error)
	// Create inserts a new session row and fills in its ID.
	Create(ctx context.Context, session *models.ImportSession) error
	// IncrementCounter bumps the ingested message counter by one.
	IncrementCounter(ctx context.Context, id primitive.ObjectID) error
	// Close marks the session inactive and completed, timestamped now.
	Close(ctx context.Context, id primitive.ObjectID) error
}

// MediaGroupBufferRepository is the durable buffer behind the aggregator.
type MediaGroupBufferRepository interface {
	// Insert appends one group member to the buffer.
	Insert(ctx context.Context, entry *models.MediaGroupBufferEntry) error
	// ListByKey returns all buffered entries for (group id, collection id),
	// ordered by message id ascending.
	ListByKey(ctx context.Context, groupID string, collectionID int64) ([]models.MediaGroupBufferEntry, error)
	// DeleteByKey removes all buffered entries for (group id, collection id).
	DeleteByKey(ctx context.Context, groupID string, collectionID int64) error
}

// PostRepository persists feed posts. Duplicate suppression is an explicit
// existence check before insert; no native upsert is relied upon.
type PostRepository interface {
	// Exists reports whether a post with the given (collection id, source
	// message id) pair was already ingested.
	Exists(ctx context.Context, collectionID int64, messageID int) (bool, error)
	// Create inserts a new post row and fills in its ID.
	Create(ctx context.Context, post *models.Post) error
}

// PostMediaRepository persists the members of group posts.
type PostMediaRepository interface {
	// Create inserts one group member row.
	Create(ctx context.Context, media *models.PostMedia) error
}
