package mediagroups

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"chanfeed-bot/internal/database"
	"chanfeed-bot/internal/database/models"
	"chanfeed-bot/internal/locales"
	"chanfeed-bot/internal/media"
	"chanfeed-bot/internal/storage"

	"github.com/mymmrac/telego"
)

// DefaultFlushDelay is the quiescence window measured from the first observed
// group member. Later members do not extend it; there is no completion signal
// from the platform, the timeout is the only "group is done" heuristic.
const DefaultFlushDelay = 5 * time.Second

// MediaStorer is the slice of the storage pipeline the aggregator needs.
type MediaStorer interface {
	Store(ctx context.Context, collectionID int64, fileID string, hints storage.Hints) *storage.StoredFile
	StoreThumb(ctx context.Context, collectionID int64, fileID string) string
}

// Aggregator buffers media group members and flushes each (group id,
// collection id) key once after the quiescence window.
type Aggregator struct {
	buffer    database.MediaGroupBufferRepository
	posts     database.PostRepository
	postMedia database.PostMediaRepository
	storer    MediaStorer
	scheduler *Scheduler
	delay     time.Duration
}

// NewAggregator creates an aggregator flushing after the given delay.
func NewAggregator(
	buffer database.MediaGroupBufferRepository,
	posts database.PostRepository,
	postMedia database.PostMediaRepository,
	storer MediaStorer,
	delay time.Duration,
) *Aggregator {
	if delay <= 0 {
		delay = DefaultFlushDelay
	}
	return &Aggregator{
		buffer:    buffer,
		posts:     posts,
		postMedia: postMedia,
		storer:    storer,
		scheduler: NewScheduler(),
		delay:     delay,
	}
}

// Add buffers one group member and arms the flush timer on the first arrival
// for its key. The window is fixed-delay: arrivals after the first do not
// reset it.
func (a *Aggregator) Add(ctx context.Context, collectionID int64, source string, msg *telego.Message, meta media.Meta) error {
	entry := &models.MediaGroupBufferEntry{
		GroupID:      msg.MediaGroupID,
		CollectionID: collectionID,
		MessageID:    msg.MessageID,
		Source:       source,
		Meta:         meta,
		Caption:      msg.Caption,
		MessageDate:  time.Unix(msg.Date, 0),
		ReceivedAt:   time.Now(),
	}
	if err := a.buffer.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to buffer media group member: %w", err)
	}

	groupID, cid := msg.MediaGroupID, collectionID
	armed := a.scheduler.Schedule(flushKey(groupID, cid), a.delay, func() {
		// The webhook call that buffered the first member is long gone by
		// the time the timer fires; processing runs on its own context.
		if err := a.Flush(context.Background(), groupID, cid); err != nil {
			log.Printf("[Aggregator Group:%s] Flush failed: %v", groupID, err)
		}
	})
	if armed {
		log.Printf("[Aggregator Group:%s] First member buffered, flush in %v", groupID, a.delay)
	}
	return nil
}

// Flush assembles all buffered members for the key into one parent post with
// ordered children, then clears the buffer. An empty buffer makes it a no-op,
// which keeps the operation idempotent under duplicate scheduling or duplicate
// delivery before the first flush fires.
func (a *Aggregator) Flush(ctx context.Context, groupID string, collectionID int64) error {
	entries, err := a.buffer.ListByKey(ctx, groupID, collectionID)
	if err != nil {
		return fmt.Errorf("failed to read buffered group %s: %w", groupID, err)
	}
	if len(entries) == 0 {
		log.Printf("[Aggregator Group:%s] Nothing buffered, skipping flush", groupID)
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MessageID < entries[j].MessageID
	})
	first := entries[0]

	// Same duplicate suppression as single posts, keyed by the first member.
	exists, err := a.posts.Exists(ctx, collectionID, first.MessageID)
	if err != nil {
		return fmt.Errorf("failed duplicate check for group %s: %w", groupID, err)
	}
	if exists {
		log.Printf("[Aggregator Group:%s] Post for message %d already ingested into collection %d, dropping buffer", groupID, first.MessageID, collectionID)
		return a.buffer.DeleteByKey(ctx, groupID, collectionID)
	}

	post := &models.Post{
		CollectionID: collectionID,
		Source:       first.Source,
		Caption:      firstCaption(entries),
		MediaType:    models.MediaTypeGroup,
		MediaGroupID: groupID,
		MemberCount:  len(entries),
		MessageID:    first.MessageID,
		PublishedAt:  earliestDate(entries),
	}
	if err := a.posts.Create(ctx, post); err != nil {
		return fmt.Errorf("failed to create group post for %s: %w", groupID, err)
	}

	for i, entry := range entries {
		item := &models.PostMedia{
			PostID:       post.ID,
			Position:     i,
			MediaType:    string(entry.Meta.Category),
			FileSize:     entry.Meta.FileSize,
			FileName:     entry.Meta.FileName,
			MIMEType:     entry.Meta.MIMEType,
			MessageID:    entry.MessageID,
			Error:        entry.Meta.Error,
			ErrorMessage: entry.Meta.ErrorMessage,
		}

		if !entry.Meta.Error && entry.Meta.FileID != "" {
			stored := a.storer.Store(ctx, collectionID, entry.Meta.FileID, storage.Hints{
				FileName: entry.Meta.FileName,
				MIMEType: entry.Meta.MIMEType,
				Category: entry.Meta.Category,
			})
			if stored == nil {
				item.Error = true
				item.ErrorMessage = downloadFailedMessage()
			} else {
				item.FileKey = stored.Key
				item.MIMEType = stored.ContentType
				item.FileSize = stored.Size
				if entry.Meta.ThumbFileID != "" {
					item.ThumbKey = a.storer.StoreThumb(ctx, collectionID, entry.Meta.ThumbFileID)
				}
			}
		}

		if err := a.postMedia.Create(ctx, item); err != nil {
			// Siblings continue; a half-written group is still better than
			// dropping the remaining members.
			log.Printf("[Aggregator Group:%s] Failed to create member %d: %v", groupID, i, err)
		}
	}

	if err := a.buffer.DeleteByKey(ctx, groupID, collectionID); err != nil {
		return fmt.Errorf("failed to clear buffer for group %s: %w", groupID, err)
	}
	log.Printf("[Aggregator Group:%s] Flushed %d member(s) into collection %d", groupID, len(entries), collectionID)
	return nil
}

// Shutdown stops all pending flush timers.
func (a *Aggregator) Shutdown() {
	a.scheduler.Shutdown()
}

func flushKey(groupID string, collectionID int64) string {
	return fmt.Sprintf("%s:%d", groupID, collectionID)
}

// firstCaption returns the first non-empty caption among members in order.
func firstCaption(entries []models.MediaGroupBufferEntry) string {
	for _, e := range entries {
		if e.Caption != "" {
			return e.Caption
		}
	}
	return ""
}

// earliestDate returns the earliest member message timestamp.
func earliestDate(entries []models.MediaGroupBufferEntry) time.Time {
	earliest := entries[0].MessageDate
	for _, e := range entries[1:] {
		if e.MessageDate.Before(earliest) {
			earliest = e.MessageDate
		}
	}
	return earliest
}

func downloadFailedMessage() string {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	return locales.GetMessage(localizer, "MsgMediaDownloadFailed", nil, nil)
}
