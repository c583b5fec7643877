// Package storage holds the object-storage capability and the file retrieval
// pipeline that moves media from the chat platform into durable storage.
package storage

import "context"

// ObjectMeta describes a stored object without its payload.
type ObjectMeta struct {
	Key         string
	ContentType string
	Size        int64
}

// ObjectStorage is the durable blob store capability consumed by the pipeline.
type ObjectStorage interface {
	// Put stores the payload under key with the given content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the stored payload for key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Head returns the stored object's metadata without fetching the payload.
	Head(ctx context.Context, key string) (*ObjectMeta, error)
}
