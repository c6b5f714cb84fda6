package gcpclient

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// StorageAdapter wraps the GCS client to store and fetch uploaded document
// bytes. Implements service.ObjectStore.
type StorageAdapter struct {
	client *storage.Client
	bucket string
}

// NewStorageAdapter creates a StorageAdapter for one bucket.
func NewStorageAdapter(ctx context.Context, bucket string) (*StorageAdapter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewStorageAdapter: %w", err)
	}
	return &StorageAdapter{client: client, bucket: bucket}, nil
}

// Upload writes data to an object.
func (a *StorageAdapter) Upload(ctx context.Context, object string, data []byte, contentType string) error {
	w := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcpclient.Upload write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcpclient.Upload close: %w", err)
	}
	return nil
}

// Download reads an object's bytes.
func (a *StorageAdapter) Download(ctx context.Context, object string) ([]byte, error) {
	r, err := a.client.Bucket(a.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Download: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Delete removes an object. Missing objects are not an error.
func (a *StorageAdapter) Delete(ctx context.Context, object string) error {
	err := a.client.Bucket(a.bucket).Object(object).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("gcpclient.Delete: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (a *StorageAdapter) Close() {
	a.client.Close()
}
