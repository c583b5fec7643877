package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post source kinds.
const (
	PostSourceChannel = "channel" // ingested from a channel post
	PostSourceImport  = "import"  // forwarded during an import session
)

// MediaTypeGroup is the aggregate media type of a multi-item post. Single-item
// posts carry the extractor category (photo, video, ...) instead.
const MediaTypeGroup = "group"

// Post is one unit of the content feed. A post is created either directly from
// a single message or by the media group aggregator at flush time; in the group
// case the per-item payloads live in PostMedia children and MemberCount is > 1.
type Post struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	CollectionID int64              `bson:"collection_id"`
	Source       string             `bson:"source"` // PostSourceChannel or PostSourceImport
	Caption      string             `bson:"caption,omitempty"`
	MediaType    string             `bson:"media_type,omitempty"` // extractor category or MediaTypeGroup
	MediaGroupID string             `bson:"media_group_id,omitempty"`
	MemberCount  int                `bson:"member_count,omitempty"`
	FileKey      string             `bson:"file_key,omitempty"` // object storage key
	ThumbKey     string             `bson:"thumb_key,omitempty"`
	FileSize     int64              `bson:"file_size,omitempty"`
	FileName     string             `bson:"file_name,omitempty"`
	MIMEType     string             `bson:"mime_type,omitempty"`
	MessageID    int                `bson:"message_id"` // source message id on the platform
	Error        bool               `bson:"error,omitempty"`
	ErrorMessage string             `bson:"error_message,omitempty"`
	PublishedAt  time.Time          `bson:"published_at"`
	CreatedAt    time.Time          `bson:"created_at"`
}

// PostMedia is one member of a group Post, in flush order. It carries the same
// per-item attributes as a single post's media fields plus the order index.
type PostMedia struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	PostID       primitive.ObjectID `bson:"post_id"`
	Position     int                `bson:"position"`
	MediaType    string             `bson:"media_type,omitempty"`
	FileKey      string             `bson:"file_key,omitempty"`
	ThumbKey     string             `bson:"thumb_key,omitempty"`
	FileSize     int64              `bson:"file_size,omitempty"`
	FileName     string             `bson:"file_name,omitempty"`
	MIMEType     string             `bson:"mime_type,omitempty"`
	MessageID    int                `bson:"message_id"`
	Error        bool               `bson:"error,omitempty"`
	ErrorMessage string             `bson:"error_message,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
}
