package storage

import (
	"bytes"
	"context"
	"io"
)

// ByteClient provides a []byte-oriented interface for storage operations.
// The chunker and processor work with in-memory WAV data rather than streams.
type ByteClient interface {
	// Upload stores data at the given path.
	Upload(ctx context.Context, path string, data []byte) error

	// Download retrieves data from the given path.
	Download(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object at the given path.
	Delete(ctx context.Context, path string) error

	// DeletePrefix removes every object whose path starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// byteAdapter wraps a streaming Storage and implements ByteClient.
type byteAdapter struct {
	storage Storage
}

// NewByteClient wraps a streaming Storage implementation with []byte
// convenience methods.
func NewByteClient(s Storage) ByteClient {
	return &byteAdapter{storage: s}
}

func (a *byteAdapter) Upload(ctx context.Context, path string, data []byte) error {
	return a.storage.Upload(ctx, path, bytes.NewReader(data))
}

func (a *byteAdapter) Download(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.storage.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *byteAdapter) Delete(ctx context.Context, path string) error {
	return a.storage.Delete(ctx, path)
}

func (a *byteAdapter) DeletePrefix(ctx context.Context, prefix string) error {
	files, err := a.storage.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := a.storage.Delete(ctx, f.Path); err != nil {
			return err
		}
	}
	return nil
}
