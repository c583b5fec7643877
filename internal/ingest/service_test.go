package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"chanfeed-bot/internal/database/models"
	"chanfeed-bot/internal/locales"
	"chanfeed-bot/internal/media"
	"chanfeed-bot/internal/mediagroups"
	"chanfeed-bot/internal/storage"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMain(m *testing.M) {
	locales.Init("en")
	m.Run()
}

// --- In-memory fakes ---

type fakeLinkedChatRepo struct {
	bindings map[int64][]models.LinkedChat
	calls    int
}

func (r *fakeLinkedChatRepo) ListActiveByChatID(_ context.Context, chatID int64) ([]models.LinkedChat, error) {
	r.calls++
	return r.bindings[chatID], nil
}

type fakePostRepo struct {
	mu    sync.Mutex
	posts []*models.Post
}

func (r *fakePostRepo) Exists(_ context.Context, collectionID int64, messageID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.CollectionID == collectionID && p.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePostRepo) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = primitive.NewObjectID()
	clone := *post
	r.posts = append(r.posts, &clone)
	return nil
}

type fakeBufferRepo struct {
	mu      sync.Mutex
	entries []models.MediaGroupBufferEntry
}

func (r *fakeBufferRepo) Insert(_ context.Context, entry *models.MediaGroupBufferEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeBufferRepo) ListByKey(_ context.Context, groupID string, collectionID int64) ([]models.MediaGroupBufferEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MediaGroupBufferEntry
	for _, e := range r.entries {
		if e.GroupID == groupID && e.CollectionID == collectionID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (r *fakeBufferRepo) DeleteByKey(_ context.Context, groupID string, collectionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.GroupID != groupID || e.CollectionID != collectionID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	return nil
}

type fakePostMediaRepo struct {
	mu    sync.Mutex
	items []*models.PostMedia
}

func (r *fakePostMediaRepo) Create(_ context.Context, item *models.PostMedia) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = primitive.NewObjectID()
	clone := *item
	r.items = append(r.items, &clone)
	return nil
}

type fakeStorer struct {
	mu     sync.Mutex
	calls  int
	thumbs int
	fail   bool
}

func (s *fakeStorer) Store(_ context.Context, collectionID int64, fileID string, hints storage.Hints) *storage.StoredFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return nil
	}
	return &storage.StoredFile{
		Key:         fmt.Sprintf("collections/%d/%s.bin", collectionID, fileID),
		ContentType: "application/octet-stream",
		Size:        512,
	}
}

func (s *fakeStorer) StoreThumb(_ context.Context, collectionID int64, fileID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbs++
	return fmt.Sprintf("thumbs/%d/%s.jpg", collectionID, fileID)
}

type serviceFixture struct {
	service *Service
	linked  *fakeLinkedChatRepo
	posts   *fakePostRepo
	buffer  *fakeBufferRepo
	storer  *fakeStorer
}

func newFixture(channelID, collectionID int64) *serviceFixture {
	linked := &fakeLinkedChatRepo{bindings: make(map[int64][]models.LinkedChat)}
	posts := &fakePostRepo{}
	buffer := &fakeBufferRepo{}
	storer := &fakeStorer{}
	aggregator := mediagroups.NewAggregator(buffer, posts, &fakePostMediaRepo{}, storer, time.Hour)
	return &serviceFixture{
		service: NewService(channelID, collectionID, linked, posts, aggregator, storer),
		linked:  linked,
		posts:   posts,
		buffer:  buffer,
		storer:  storer,
	}
}

func channelPost(chatID int64, messageID int) *telego.Message {
	return &telego.Message{
		MessageID: messageID,
		Chat:      telego.Chat{ID: chatID, Type: telego.ChatTypeChannel},
		Date:      1700000000,
		Photo:     []telego.PhotoSize{{FileID: fmt.Sprintf("photo-%d", messageID), FileSize: 100}},
	}
}

// --- Tests ---

func TestHandleChannelPostPrimaryBindingTakesPrecedence(t *testing.T) {
	f := newFixture(100, 9)
	// A linked binding for the same chat must be shadowed by the primary one.
	f.linked.bindings[100] = []models.LinkedChat{{ChatID: 100, CollectionID: 5, Active: true}}

	require.NoError(t, f.service.HandleChannelPost(context.Background(), channelPost(100, 1)))

	require.Len(t, f.posts.posts, 1)
	assert.Equal(t, int64(9), f.posts.posts[0].CollectionID)
	assert.Equal(t, 0, f.linked.calls, "linked chats must not be consulted for the primary channel")
}

func TestHandleChannelPostFansOutToLinkedChats(t *testing.T) {
	f := newFixture(0, 0)
	f.linked.bindings[200] = []models.LinkedChat{
		{ChatID: 200, CollectionID: 5, Active: true},
		{ChatID: 200, CollectionID: 6, Active: true},
		{ChatID: 200, Active: true}, // unbound rows are skipped
	}

	require.NoError(t, f.service.HandleChannelPost(context.Background(), channelPost(200, 2)))

	require.Len(t, f.posts.posts, 2)
	collections := []int64{f.posts.posts[0].CollectionID, f.posts.posts[1].CollectionID}
	assert.ElementsMatch(t, []int64{5, 6}, collections)
}

func TestHandleChannelPostWithoutBindingsIsIgnored(t *testing.T) {
	f := newFixture(0, 0)

	require.NoError(t, f.service.HandleChannelPost(context.Background(), channelPost(300, 3)))

	assert.Empty(t, f.posts.posts)
}

func TestIngestMessageDuplicateDeliveryCreatesNoSecondPost(t *testing.T) {
	f := newFixture(0, 0)
	ctx := context.Background()
	msg := channelPost(10, 42)

	require.NoError(t, f.service.IngestMessage(ctx, 7, models.PostSourceChannel, msg))
	require.NoError(t, f.service.IngestMessage(ctx, 7, models.PostSourceChannel, msg))

	assert.Len(t, f.posts.posts, 1)
	assert.Equal(t, 1, f.storer.calls, "duplicate delivery must not refetch the file")
}

func TestIngestMessageSameMessageDistinctCollections(t *testing.T) {
	f := newFixture(0, 0)
	ctx := context.Background()
	msg := channelPost(10, 42)

	require.NoError(t, f.service.IngestMessage(ctx, 7, models.PostSourceChannel, msg))
	require.NoError(t, f.service.IngestMessage(ctx, 8, models.PostSourceChannel, msg))

	assert.Len(t, f.posts.posts, 2, "duplicate suppression is per collection")
}

func TestIngestMessageOversizedVideo(t *testing.T) {
	f := newFixture(0, 0)
	msg := &telego.Message{
		MessageID: 50,
		Chat:      telego.Chat{ID: 10, Type: telego.ChatTypeChannel},
		Date:      1700000000,
		Video:     &telego.Video{FileID: "big", FileSize: 25165824},
	}

	require.NoError(t, f.service.IngestMessage(context.Background(), 7, models.PostSourceChannel, msg))

	require.Len(t, f.posts.posts, 1)
	post := f.posts.posts[0]
	assert.True(t, post.Error)
	assert.Contains(t, post.ErrorMessage, "25165824")
	assert.Empty(t, post.FileKey)
	assert.Equal(t, 0, f.storer.calls, "no retrieval may be attempted for an oversized video")
}

func TestIngestMessageTextOnly(t *testing.T) {
	f := newFixture(0, 0)
	msg := &telego.Message{
		MessageID: 51,
		Chat:      telego.Chat{ID: 10, Type: telego.ChatTypeChannel},
		Date:      1700000000,
		Text:      "plain announcement",
	}

	require.NoError(t, f.service.IngestMessage(context.Background(), 7, models.PostSourceChannel, msg))

	require.Len(t, f.posts.posts, 1)
	post := f.posts.posts[0]
	assert.Equal(t, "plain announcement", post.Caption)
	assert.Empty(t, post.MediaType)
	assert.False(t, post.Error)
	assert.Equal(t, 0, f.storer.calls)
}

func TestIngestMessageDownloadFailureFlagsPost(t *testing.T) {
	f := newFixture(0, 0)
	f.storer.fail = true

	require.NoError(t, f.service.IngestMessage(context.Background(), 7, models.PostSourceChannel, channelPost(10, 52)))

	require.Len(t, f.posts.posts, 1)
	post := f.posts.posts[0]
	assert.True(t, post.Error)
	assert.NotEmpty(t, post.ErrorMessage)
	assert.Empty(t, post.FileKey)
}

func TestIngestMessageStoresVideoWithThumbnail(t *testing.T) {
	f := newFixture(0, 0)
	msg := &telego.Message{
		MessageID: 53,
		Chat:      telego.Chat{ID: 10, Type: telego.ChatTypeChannel},
		Date:      1700000000,
		Caption:   "clip",
		Video: &telego.Video{
			FileID:    "v1",
			FileSize:  4096,
			FileName:  "clip.mp4",
			MimeType:  "video/mp4",
			Thumbnail: &telego.PhotoSize{FileID: "t1"},
		},
	}

	require.NoError(t, f.service.IngestMessage(context.Background(), 7, models.PostSourceChannel, msg))

	require.Len(t, f.posts.posts, 1)
	post := f.posts.posts[0]
	assert.Equal(t, string(media.CategoryVideo), post.MediaType)
	assert.NotEmpty(t, post.FileKey)
	assert.NotEmpty(t, post.ThumbKey)
	assert.Equal(t, "clip", post.Caption)
	assert.Equal(t, time.Unix(1700000000, 0), post.PublishedAt)
	assert.Equal(t, 1, f.storer.thumbs)
}

func TestIngestMessageMediaGroupMemberIsBuffered(t *testing.T) {
	f := newFixture(0, 0)
	msg := channelPost(10, 60)
	msg.MediaGroupID = "mg1"

	require.NoError(t, f.service.IngestMessage(context.Background(), 7, models.PostSourceChannel, msg))

	assert.Empty(t, f.posts.posts, "group members must not become posts before the flush")
	entries, err := f.buffer.ListByKey(context.Background(), "mg1", 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 60, entries[0].MessageID)
	assert.Equal(t, media.CategoryPhoto, entries[0].Meta.Category)
}
