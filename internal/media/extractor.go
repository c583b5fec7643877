// Package media classifies Telegram messages and extracts their media metadata.
// Extraction is a single pass with no I/O; retrieval decisions (what to download,
// what to skip) are made from the returned Meta alone.
package media

import (
	"fmt"

	"github.com/mymmrac/telego"
)

// Category identifies the single media kind extracted from a message.
type Category string

const (
	CategoryNone      Category = ""
	CategoryPhoto     Category = "photo"
	CategoryVideo     Category = "video"
	CategoryDocument  Category = "document"
	CategoryAudio     Category = "audio"
	CategoryAnimation Category = "animation"
	CategoryVoice     Category = "voice"
)

// MaxBotDownloadSize is the Bot API limit for bot-initiated file downloads.
// Videos and documents above it cannot be retrieved at all, so they are flagged
// at extraction time and never reach the storage pipeline.
const MaxBotDownloadSize = 20 * 1024 * 1024

// Meta is the extracted metadata of a message's media. A message with no
// recognized media yields the zero Meta. When Error is set, FileID and
// ThumbFileID are cleared so no retrieval is attempted.
type Meta struct {
	Category     Category `bson:"category,omitempty"`
	FileID       string   `bson:"file_id,omitempty"`
	FileUniqueID string   `bson:"file_unique_id,omitempty"`
	FileSize     int64    `bson:"file_size,omitempty"`
	FileName     string   `bson:"file_name,omitempty"`
	MIMEType     string   `bson:"mime_type,omitempty"`
	Width        int      `bson:"width,omitempty"`
	Height       int      `bson:"height,omitempty"`
	Duration     int      `bson:"duration,omitempty"`
	ThumbFileID  string   `bson:"thumb_file_id,omitempty"`
	Error        bool     `bson:"error,omitempty"`
	ErrorMessage string   `bson:"error_message,omitempty"`
}

// Extract classifies the message and returns its media metadata.
//
// Exactly one category is selected, in a fixed precedence order: photo, video,
// document, audio, animation, voice. Only the first populated field is used
// even if several happen to be set on the same message; the order is a product
// decision and must not be changed casually.
func Extract(msg *telego.Message) Meta {
	if msg == nil {
		return Meta{}
	}

	switch {
	case len(msg.Photo) > 0:
		return extractPhoto(msg.Photo)
	case msg.Video != nil:
		v := msg.Video
		m := Meta{
			Category:     CategoryVideo,
			FileID:       v.FileID,
			FileUniqueID: v.FileUniqueID,
			FileSize:     v.FileSize,
			FileName:     v.FileName,
			MIMEType:     v.MimeType,
			Width:        v.Width,
			Height:       v.Height,
			Duration:     v.Duration,
		}
		if v.Thumbnail != nil {
			m.ThumbFileID = v.Thumbnail.FileID
		}
		return applySizeLimit(m)
	case msg.Document != nil:
		d := msg.Document
		m := Meta{
			Category:     CategoryDocument,
			FileID:       d.FileID,
			FileUniqueID: d.FileUniqueID,
			FileSize:     d.FileSize,
			FileName:     d.FileName,
			MIMEType:     d.MimeType,
		}
		if d.Thumbnail != nil {
			m.ThumbFileID = d.Thumbnail.FileID
		}
		return applySizeLimit(m)
	case msg.Audio != nil:
		a := msg.Audio
		m := Meta{
			Category:     CategoryAudio,
			FileID:       a.FileID,
			FileUniqueID: a.FileUniqueID,
			FileSize:     a.FileSize,
			FileName:     a.FileName,
			MIMEType:     a.MimeType,
			Duration:     a.Duration,
		}
		if a.Thumbnail != nil {
			m.ThumbFileID = a.Thumbnail.FileID
		}
		return m
	case msg.Animation != nil:
		an := msg.Animation
		m := Meta{
			Category:     CategoryAnimation,
			FileID:       an.FileID,
			FileUniqueID: an.FileUniqueID,
			FileSize:     an.FileSize,
			FileName:     an.FileName,
			MIMEType:     an.MimeType,
			Width:        an.Width,
			Height:       an.Height,
			Duration:     an.Duration,
		}
		if an.Thumbnail != nil {
			m.ThumbFileID = an.Thumbnail.FileID
		}
		return m
	case msg.Voice != nil:
		v := msg.Voice
		return Meta{
			Category:     CategoryVoice,
			FileID:       v.FileID,
			FileUniqueID: v.FileUniqueID,
			FileSize:     v.FileSize,
			MIMEType:     v.MimeType,
			Duration:     v.Duration,
		}
	}
	return Meta{}
}

// extractPhoto selects the photo variant with the largest reported size.
// Ties resolve to the earliest-listed variant.
func extractPhoto(sizes []telego.PhotoSize) Meta {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.FileSize > best.FileSize {
			best = p
		}
	}
	return Meta{
		Category:     CategoryPhoto,
		FileID:       best.FileID,
		FileUniqueID: best.FileUniqueID,
		FileSize:     int64(best.FileSize),
		Width:        best.Width,
		Height:       best.Height,
	}
}

// applySizeLimit flags videos and documents above the Bot API download limit.
// The file and thumbnail references are cleared so callers never try to fetch.
func applySizeLimit(m Meta) Meta {
	if m.FileSize > MaxBotDownloadSize {
		m.Error = true
		m.ErrorMessage = fmt.Sprintf("%s of %d bytes exceeds the %d byte bot download limit", m.Category, m.FileSize, int64(MaxBotDownloadSize))
		m.FileID = ""
		m.ThumbFileID = ""
	}
	return m
}
