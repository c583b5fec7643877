package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"chanfeed-bot/internal/media"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

// MockFileAPI is a mock implementing the telegoapi.FileAPI interface.
type MockFileAPI struct {
	mock.Mock
}

func (m *MockFileAPI) GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error) {
	args := m.Called(ctx, params)
	if file, ok := args.Get(0).(*telego.File); ok {
		return file, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFileAPI) FileDownloadURL(filepath string) string {
	args := m.Called(filepath)
	return args.String(0)
}

// memoryStorage is an in-memory ObjectStorage.
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]ObjectMeta
	failPut bool
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string]ObjectMeta)}
}

func (s *memoryStorage) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("put failed")
	}
	s.objects[key] = ObjectMeta{Key: key, ContentType: contentType, Size: int64(len(data))}
	return nil
}

func (s *memoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *memoryStorage) Head(_ context.Context, key string) (*ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return &meta, nil
}

func (s *memoryStorage) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// --- Tests ---

func TestInferExtensionPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		hints    Hints
		expected string
	}{
		{"filename wins over mime and category", Hints{FileName: "movie.mkv", MIMEType: "video/mp4", Category: media.CategoryVideo}, ".mkv"},
		{"mime table when no filename", Hints{MIMEType: "image/png", Category: media.CategoryPhoto}, ".png"},
		{"category default when mime unknown", Hints{MIMEType: "application/x-whatever", Category: media.CategoryVoice}, ".ogg"},
		{"category defaults", Hints{Category: media.CategoryAudio}, ".mp3"},
		{"animation defaults to mp4", Hints{Category: media.CategoryAnimation}, ".mp4"},
		{"document defaults to bin", Hints{Category: media.CategoryDocument}, ".bin"},
		{"overlong filename extension ignored", Hints{FileName: "archive.backup2024", MIMEType: "application/zip"}, ".zip"},
		{"filename without extension falls through", Hints{FileName: "README", Category: media.CategoryDocument}, ".bin"},
		{"uppercase filename extension lowered", Hints{FileName: "PHOTO.JPG"}, ".jpg"},
		{"nothing known falls back to bin", Hints{}, ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, inferExtension(tt.hints))
		})
	}
}

func TestStoreUploadsUnderCollectionKey(t *testing.T) {
	payload := []byte("file-bytes")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	files := new(MockFileAPI)
	files.On("GetFile", mock.Anything, &telego.GetFileParams{FileID: "f1"}).
		Return(&telego.File{FileID: "f1", FilePath: "documents/file_1"}, nil)
	files.On("FileDownloadURL", "documents/file_1").Return(ts.URL + "/documents/file_1")

	objects := newMemoryStorage()
	p := NewPipeline(files, objects)

	stored := p.Store(context.Background(), 42, "f1", Hints{FileName: "report.pdf", MIMEType: "application/pdf", Category: media.CategoryDocument})

	require.NotNil(t, stored)
	assert.True(t, strings.HasPrefix(stored.Key, "collections/42/"), "key %q should be collection-scoped", stored.Key)
	assert.True(t, strings.HasSuffix(stored.Key, ".pdf"))
	assert.Equal(t, "application/pdf", stored.ContentType)
	assert.Equal(t, int64(len(payload)), stored.Size)

	require.Len(t, objects.keys(), 1)
	head, err := objects.Head(context.Background(), stored.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), head.Size)
	files.AssertExpectations(t)
}

func TestStoreContentTypeFallsBackToResponseHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer ts.Close()

	files := new(MockFileAPI)
	files.On("GetFile", mock.Anything, mock.Anything).Return(&telego.File{FilePath: "photos/p"}, nil)
	files.On("FileDownloadURL", "photos/p").Return(ts.URL + "/photos/p")

	p := NewPipeline(files, newMemoryStorage())
	stored := p.Store(context.Background(), 1, "p1", Hints{Category: media.CategoryPhoto})

	require.NotNil(t, stored)
	assert.Equal(t, "image/jpeg", stored.ContentType)
	assert.True(t, strings.HasSuffix(stored.Key, ".jpg"))
}

func TestStoreKeysDoNotCollide(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer ts.Close()

	files := new(MockFileAPI)
	files.On("GetFile", mock.Anything, mock.Anything).Return(&telego.File{FilePath: "photos/p"}, nil)
	files.On("FileDownloadURL", "photos/p").Return(ts.URL + "/photos/p")

	objects := newMemoryStorage()
	p := NewPipeline(files, objects)

	first := p.Store(context.Background(), 1, "p1", Hints{Category: media.CategoryPhoto})
	second := p.Store(context.Background(), 1, "p1", Hints{Category: media.CategoryPhoto})

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Key, second.Key)
	assert.Len(t, objects.keys(), 2)
}

func TestStoreResolveFailureReturnsNil(t *testing.T) {
	files := new(MockFileAPI)
	files.On("GetFile", mock.Anything, mock.Anything).Return(nil, errors.New("file not found"))

	p := NewPipeline(files, newMemoryStorage())

	assert.Nil(t, p.Store(context.Background(), 1, "gone", Hints{}))
}

func TestStoreFetchFailureReturnsNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	files := new(MockFileAPI)
	files.On("GetFile", mock.Anything, mock.Anything).Return(&telego.File{FilePath: "expired/f"}, nil)
	files.On("FileDownloadURL", "expired/f").Return(ts.URL + "/expired/f")

	objects := newMemoryStorage()
	p := NewPipeline(files, objects)

	assert.Nil(t, p.Store(context.Background(), 1, "f1", Hints{}))
	assert.Empty(t, objects.keys())
}

func TestStoreUploadFailureReturnsNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer ts.Close()

	files := new(MockFileAPI)
	files.On("GetFile", mock.Anything, mock.Anything).Return(&telego.File{FilePath: "photos/p"}, nil)
	files.On("FileDownloadURL", "photos/p").Return(ts.URL + "/photos/p")

	objects := newMemoryStorage()
	objects.failPut = true
	p := NewPipeline(files, objects)

	assert.Nil(t, p.Store(context.Background(), 1, "p1", Hints{}))
}

func TestStoreThumbUsesThumbNamespace(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("thumb"))
	}))
	defer ts.Close()

	files := new(MockFileAPI)
	files.On("GetFile", mock.Anything, mock.Anything).Return(&telego.File{FilePath: "thumbs/t"}, nil)
	files.On("FileDownloadURL", "thumbs/t").Return(ts.URL + "/thumbs/t")

	p := NewPipeline(files, newMemoryStorage())
	key := p.StoreThumb(context.Background(), 7, "t1")

	assert.True(t, strings.HasPrefix(key, "thumbs/7/"), "thumb key %q should use the thumbs namespace", key)
	assert.True(t, strings.HasSuffix(key, ".jpg"))
}

func TestStoreThumbFailureReturnsEmptyKey(t *testing.T) {
	files := new(MockFileAPI)
	files.On("GetFile", mock.Anything, mock.Anything).Return(nil, errors.New("expired"))

	p := NewPipeline(files, newMemoryStorage())

	assert.Empty(t, p.StoreThumb(context.Background(), 7, "t1"))
}
