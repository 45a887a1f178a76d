// Package storage abstracts the object store holding uploaded documents.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ObjectStore fetches uploaded documents by bucket and key.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// DownloadToScratch streams an object into a scratch file under dir and
// returns its path. The caller owns removal of the file.
func DownloadToScratch(ctx context.Context, store ObjectStore, bucket, key, dir string) (string, error) {
	body, err := store.Get(ctx, bucket, key)
	if err != nil {
		return "", fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	defer body.Close()

	f, err := os.CreateTemp(dir, "ingest-*-"+filepath.Base(key))
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close scratch file: %w", err)
	}

	return f.Name(), nil
}
