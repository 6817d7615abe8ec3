// Package storage stages the master order dataset from a remote object store
// into the local data directory, where DuckDB reads it as a flat file.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// SyncFile downloads one object to destPath, replacing any previous copy
// atomically so a concurrent reader never sees a partial file.
func SyncFile(ctx context.Context, store ObjectStore, key, destPath string) (ObjectInfo, error) {
	if store == nil {
		return ObjectInfo{}, fmt.Errorf("object store is required")
	}

	info, err := store.Stat(ctx, key)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat dataset object %q: %w", key, err)
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("get dataset object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".sync-*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("replace dataset file: %w", err)
	}
	return info, nil
}
