package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"chanfeed-bot/internal/media"
	"chanfeed-bot/pkg/telegoapi"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
)

const (
	collectionKeyPrefix = "collections"
	thumbKeyPrefix      = "thumbs"

	// maxFilenameExtLen caps the extension taken from an original filename,
	// dot included. Anything longer is treated as not an extension.
	maxFilenameExtLen = 6
)

// mimeExtensions maps declared MIME types to storage file extensions. Checked
// only when the original filename carries no usable extension.
var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"audio/mpeg":      ".mp3",
	"audio/ogg":       ".ogg",
	"audio/mp4":       ".m4a",
	"audio/flac":      ".flac",
	"application/pdf": ".pdf",
	"application/zip": ".zip",
	"text/plain":      ".txt",
}

// categoryExtensions is the last-resort extension per media category.
var categoryExtensions = map[media.Category]string{
	media.CategoryPhoto:     ".jpg",
	media.CategoryAudio:     ".mp3",
	media.CategoryVoice:     ".ogg",
	media.CategoryVideo:     ".mp4",
	media.CategoryAnimation: ".mp4",
	media.CategoryDocument:  ".bin",
}

// Hints carries the descriptive metadata the pipeline uses to name and type
// the stored object.
type Hints struct {
	FileName string
	MIMEType string
	Category media.Category
}

// StoredFile describes a successfully stored object.
type StoredFile struct {
	Key         string
	ContentType string
	Size        int64
}

// Pipeline retrieves a file from the chat platform and persists it into object
// storage. Every failure degrades to a nil result: the caller marks the owning
// item as errored and moves on, it never aborts sibling work.
type Pipeline struct {
	files   telegoapi.FileAPI
	objects ObjectStorage
	client  *http.Client
}

// NewPipeline creates a retrieval pipeline over the given file API and object storage.
func NewPipeline(files telegoapi.FileAPI, objects ObjectStorage) *Pipeline {
	return &Pipeline{
		files:   files,
		objects: objects,
		client:  &http.Client{},
	}
}

// Store resolves the file reference, fetches the bytes, and uploads them under
// a collection-scoped key. Returns nil when resolution, fetch, or upload fails;
// failures are logged, never propagated.
func (p *Pipeline) Store(ctx context.Context, collectionID int64, fileID string, hints Hints) *StoredFile {
	return p.store(ctx, collectionKeyPrefix, collectionID, fileID, hints)
}

// StoreThumb stores a thumbnail into its own namespace and returns the storage
// key, or "" when retrieval fails. Thumbnails are best-effort: a failure never
// blocks the primary item.
func (p *Pipeline) StoreThumb(ctx context.Context, collectionID int64, fileID string) string {
	stored := p.store(ctx, thumbKeyPrefix, collectionID, fileID, Hints{
		MIMEType: "image/jpeg",
		Category: media.CategoryPhoto,
	})
	if stored == nil {
		return ""
	}
	return stored.Key
}

func (p *Pipeline) store(ctx context.Context, prefix string, collectionID int64, fileID string, hints Hints) *StoredFile {
	file, err := p.files.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		log.Printf("[Pipeline] Failed to resolve file %s: %v", fileID, err)
		return nil
	}

	data, fetchedType, err := p.fetch(ctx, p.files.FileDownloadURL(file.FilePath))
	if err != nil {
		log.Printf("[Pipeline] Failed to fetch file %s: %v", fileID, err)
		return nil
	}

	contentType := hints.MIMEType
	if contentType == "" {
		contentType = fetchedType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%d/%d-%s%s", prefix, collectionID, time.Now().UnixNano(), shortSuffix(), inferExtension(hints))

	if err := p.objects.Put(ctx, key, data, contentType); err != nil {
		log.Printf("[Pipeline] Failed to upload file %s as %s: %v", fileID, key, err)
		return nil
	}

	return &StoredFile{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
	}
}

// fetch downloads the raw bytes from the resolved transient location.
func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read download body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// inferExtension picks the storage extension: original filename extension
// first, then the MIME table, then the category default.
func inferExtension(hints Hints) string {
	if hints.FileName != "" {
		ext := strings.ToLower(filepath.Ext(hints.FileName))
		if ext != "" && ext != "." && len(ext) <= maxFilenameExtLen {
			return ext
		}
	}
	if ext, ok := mimeExtensions[strings.ToLower(hints.MIMEType)]; ok {
		return ext
	}
	if ext, ok := categoryExtensions[hints.Category]; ok {
		return ext
	}
	return ".bin"
}

// shortSuffix returns a short random component for collision-resistant keys.
func shortSuffix() string {
	return uuid.NewString()[:8]
}
