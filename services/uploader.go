package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sonata/types"
	"time"

	"github.com/charmbracelet/log"
)

// CacheUploader pushes finished artifacts to remote storage and records a
// cache entry for them. Caching is a best-effort side channel: callers log
// and swallow its errors.
type CacheUploader interface {
	Upload(ctx context.Context, filePath, title, artist string) (*types.CacheEntry, error)
	CheckCache(ctx context.Context, title, artist string) (*types.CacheEntry, error)
	Cleanup(ctx context.Context) (types.CacheCleanupResponse, error)
}

type cacheUploader struct {
	objects ObjectStore
	entries CacheStore
	ttl     time.Duration
	logger  *log.Logger
}

// NewCacheUploader creates the uploader
func NewCacheUploader(objects ObjectStore, entries CacheStore, ttl time.Duration, logger *log.Logger) CacheUploader {
	return &cacheUploader{
		objects: objects,
		entries: entries,
		ttl:     ttl,
		logger:  logger,
	}
}

// Upload stores the artifact remotely under a key derived from the
// normalized title+artist and upserts the cache entry.
func (u *cacheUploader) Upload(ctx context.Context, filePath, title, artist string) (*types.CacheEntry, error) {
	key := NormalizeCacheKey(title, artist)
	objectID := "songs/" + key + filepath.Ext(filePath)

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	remoteURL, err := u.objects.Put(ctx, objectID, f, contentTypeFor(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to upload artifact: %w", err)
	}

	now := time.Now()
	entry := types.CacheEntry{
		NormalizedKey:  key,
		RemoteObjectID: objectID,
		RemoteURL:      remoteURL,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	if err := u.entries.Upsert(ctx, entry); err != nil {
		// The object exists but the entry does not; the next sweep
		// cannot see it, so surface the error to the caller's log.
		return nil, fmt.Errorf("uploaded but failed to record cache entry: %w", err)
	}

	u.logger.Info("artifact cached", "key", key, "object", objectID)
	return &entry, nil
}

// CheckCache looks up a previous upload by title+artist and records the hit
func (u *cacheUploader) CheckCache(ctx context.Context, title, artist string) (*types.CacheEntry, error) {
	key := NormalizeCacheKey(title, artist)
	entry, err := u.entries.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := u.entries.Touch(ctx, key); err != nil {
		u.logger.Warn("failed to record cache hit", "key", key, "err", err)
	}
	return entry, nil
}

// Cleanup runs the expiration sweep, deleting remote objects alongside
// their entries.
func (u *cacheUploader) Cleanup(ctx context.Context) (types.CacheCleanupResponse, error) {
	return u.entries.Sweep(ctx, u.ttl, func(ctx context.Context, objectID string) error {
		return u.objects.Delete(ctx, objectID)
	})
}

// contentTypeFor returns the MIME type for the delivered artifact
func contentTypeFor(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
