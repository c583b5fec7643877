// Package ingest turns inbound channel posts and forwarded messages into feed
// posts, applying channel-to-collection fan-out and per-collection duplicate
// suppression.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"chanfeed-bot/internal/database"
	"chanfeed-bot/internal/database/models"
	"chanfeed-bot/internal/locales"
	"chanfeed-bot/internal/media"
	"chanfeed-bot/internal/mediagroups"
	"chanfeed-bot/internal/storage"

	"github.com/mymmrac/telego"
)

// MediaStorer is the slice of the storage pipeline single-post ingestion needs.
type MediaStorer interface {
	Store(ctx context.Context, collectionID int64, fileID string, hints storage.Hints) *storage.StoredFile
	StoreThumb(ctx context.Context, collectionID int64, fileID string) string
}

// Service routes channel posts to their bound collections and creates posts.
// The bot's primary configured channel takes exclusive precedence; any other
// chat fans out through its active linked-chat bindings.
type Service struct {
	channelID    int64 // primary bound channel, 0 when unset
	collectionID int64 // collection bound to the primary channel

	linkedChats database.LinkedChatRepository
	posts       database.PostRepository
	aggregator  *mediagroups.Aggregator
	storer      MediaStorer
}

// NewService creates an ingestion service. channelID and collectionID describe
// the primary binding and may be zero.
func NewService(
	channelID int64,
	collectionID int64,
	linkedChats database.LinkedChatRepository,
	posts database.PostRepository,
	aggregator *mediagroups.Aggregator,
	storer MediaStorer,
) *Service {
	return &Service{
		channelID:    channelID,
		collectionID: collectionID,
		linkedChats:  linkedChats,
		posts:        posts,
		aggregator:   aggregator,
		storer:       storer,
	}
}

// HandleChannelPost resolves the target collection(s) for a channel post and
// ingests into each. Collections are independent: one failing does not stop
// the others.
func (s *Service) HandleChannelPost(ctx context.Context, msg *telego.Message) error {
	chatID := msg.Chat.ID

	if s.channelID != 0 && s.channelID == chatID {
		if s.collectionID == 0 {
			log.Printf("[Ingest] Primary channel %d has no bound collection, dropping message %d", chatID, msg.MessageID)
			return nil
		}
		return s.IngestMessage(ctx, s.collectionID, models.PostSourceChannel, msg)
	}

	bindings, err := s.linkedChats.ListActiveByChatID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to resolve linked chats for %d: %w", chatID, err)
	}
	if len(bindings) == 0 {
		log.Printf("[Ingest] No bindings for chat %d, ignoring message %d", chatID, msg.MessageID)
		return nil
	}

	for _, binding := range bindings {
		if binding.CollectionID == 0 {
			continue
		}
		if err := s.IngestMessage(ctx, binding.CollectionID, models.PostSourceChannel, msg); err != nil {
			log.Printf("[Ingest] Failed to ingest message %d into collection %d: %v", msg.MessageID, binding.CollectionID, err)
		}
	}
	return nil
}

// IngestMessage ingests one message into one collection. Media group members
// are handed to the aggregator; everything else becomes a single post after
// the duplicate check on (collection id, source message id).
func (s *Service) IngestMessage(ctx context.Context, collectionID int64, source string, msg *telego.Message) error {
	meta := media.Extract(msg)

	if msg.MediaGroupID != "" {
		return s.aggregator.Add(ctx, collectionID, source, msg, meta)
	}

	exists, err := s.posts.Exists(ctx, collectionID, msg.MessageID)
	if err != nil {
		return fmt.Errorf("failed duplicate check for message %d: %w", msg.MessageID, err)
	}
	if exists {
		log.Printf("[Ingest] Message %d already ingested into collection %d, skipping", msg.MessageID, collectionID)
		return nil
	}

	caption := msg.Caption
	if caption == "" {
		caption = msg.Text
	}

	post := &models.Post{
		CollectionID: collectionID,
		Source:       source,
		Caption:      caption,
		MediaType:    string(meta.Category),
		FileSize:     meta.FileSize,
		FileName:     meta.FileName,
		MIMEType:     meta.MIMEType,
		MessageID:    msg.MessageID,
		Error:        meta.Error,
		ErrorMessage: meta.ErrorMessage,
		PublishedAt:  time.Unix(msg.Date, 0),
	}

	if !meta.Error && meta.FileID != "" {
		stored := s.storer.Store(ctx, collectionID, meta.FileID, storage.Hints{
			FileName: meta.FileName,
			MIMEType: meta.MIMEType,
			Category: meta.Category,
		})
		if stored == nil {
			post.Error = true
			post.ErrorMessage = downloadFailedMessage()
		} else {
			post.FileKey = stored.Key
			post.MIMEType = stored.ContentType
			post.FileSize = stored.Size
			if meta.ThumbFileID != "" {
				post.ThumbKey = s.storer.StoreThumb(ctx, collectionID, meta.ThumbFileID)
			}
		}
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return fmt.Errorf("failed to create post for message %d: %w", msg.MessageID, err)
	}
	return nil
}

func downloadFailedMessage() string {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	return locales.GetMessage(localizer, "MsgMediaDownloadFailed", nil, nil)
}
