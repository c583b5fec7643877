package models

import (
	"time"

	"chanfeed-bot/internal/media"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaGroupBufferEntry is one member of a media group awaiting aggregation.
// Entries are keyed logically by (group id, collection id) and ordered by the
// source message id; the aggregator deletes them en masse at flush time. The
// buffer is the durable tiebreaker that makes the flush idempotent.
type MediaGroupBufferEntry struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	GroupID      string             `bson:"group_id"`
	CollectionID int64              `bson:"collection_id"`
	MessageID    int                `bson:"message_id"`
	Source       string             `bson:"source"` // PostSourceChannel or PostSourceImport
	Meta         media.Meta         `bson:"meta"`
	Caption      string             `bson:"caption,omitempty"`
	MessageDate  time.Time          `bson:"message_date"`
	ReceivedAt   time.Time          `bson:"received_at"`
}
