package services

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sonata/types"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeCacheKey derives the cache key from title and artist:
// lower-cased, whitespace and punctuation collapsed to single underscores.
func NormalizeCacheKey(title, artist string) string {
	normalize := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = nonAlphanumeric.ReplaceAllString(s, "_")
		return strings.Trim(s, "_")
	}
	return normalize(title) + "_" + normalize(artist)
}

// CacheStore persists cache entries mapping normalized keys to uploaded
// artifacts.
type CacheStore interface {
	Upsert(ctx context.Context, entry types.CacheEntry) error
	Get(ctx context.Context, key string) (*types.CacheEntry, error)
	Touch(ctx context.Context, key string) error
	Sweep(ctx context.Context, expiry time.Duration, deleteRemote func(ctx context.Context, objectID string) error) (types.CacheCleanupResponse, error)
	Close() error
}

type sqliteCacheStore struct {
	db *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	normalized_key   TEXT PRIMARY KEY,
	remote_object_id TEXT NOT NULL,
	remote_url       TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP NOT NULL,
	access_count     INTEGER NOT NULL DEFAULT 0
);
`

// NewSQLiteCacheStore opens (or creates) the cache database at path.
// ":memory:" is accepted for tests.
func NewSQLiteCacheStore(path string) (CacheStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and the pool must
	// not split an in-memory database across connections.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}
	return &sqliteCacheStore{db: db}, nil
}

// Upsert inserts the entry, or on key collision updates the remote
// reference and bumps the access count instead of duplicating.
func (s *sqliteCacheStore) Upsert(ctx context.Context, entry types.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries
			(normalized_key, remote_object_id, remote_url, created_at, last_accessed_at, access_count)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(normalized_key) DO UPDATE SET
			remote_object_id = excluded.remote_object_id,
			remote_url       = excluded.remote_url,
			last_accessed_at = excluded.last_accessed_at,
			access_count     = access_count + 1`,
		entry.NormalizedKey, entry.RemoteObjectID, entry.RemoteURL,
		entry.CreatedAt, entry.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

// Get returns the entry for the key, or types.ErrCacheMiss
func (s *sqliteCacheStore) Get(ctx context.Context, key string) (*types.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT normalized_key, remote_object_id, remote_url, created_at, last_accessed_at, access_count
		FROM cache_entries WHERE normalized_key = ?`, key)

	var entry types.CacheEntry
	err := row.Scan(&entry.NormalizedKey, &entry.RemoteObjectID, &entry.RemoteURL,
		&entry.CreatedAt, &entry.LastAccessedAt, &entry.AccessCount)
	if err == sql.ErrNoRows {
		return nil, types.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return &entry, nil
}

// Touch records a cache hit
func (s *sqliteCacheStore) Touch(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cache_entries
		SET last_accessed_at = ?, access_count = access_count + 1
		WHERE normalized_key = ?`, time.Now(), key)
	if err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}
	return nil
}

// Sweep deletes entries not accessed within the expiry window. The remote
// object is deleted first; when that fails the row is kept so a later
// sweep retries instead of orphaning remote storage.
func (s *sqliteCacheStore) Sweep(ctx context.Context, expiry time.Duration, deleteRemote func(ctx context.Context, objectID string) error) (types.CacheCleanupResponse, error) {
	result := types.CacheCleanupResponse{}
	cutoff := time.Now().Add(-expiry)

	rows, err := s.db.QueryContext(ctx, `
		SELECT normalized_key, remote_object_id
		FROM cache_entries WHERE last_accessed_at < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to query stale cache entries: %w", err)
	}

	type staleEntry struct{ key, objectID string }
	var stale []staleEntry
	for rows.Next() {
		var e staleEntry
		if err := rows.Scan(&e.key, &e.objectID); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		stale = append(stale, e)
	}
	rows.Close()

	result.Scanned = len(stale)
	for _, e := range stale {
		if deleteRemote != nil {
			if err := deleteRemote(ctx, e.objectID); err != nil {
				result.Failed++
				continue
			}
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE normalized_key = ?`, e.key); err != nil {
			result.Failed++
			continue
		}
		result.Deleted++
	}

	return result, nil
}

func (s *sqliteCacheStore) Close() error {
	return s.db.Close()
}
