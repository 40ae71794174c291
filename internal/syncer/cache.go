package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/getleo/cadsync/leo"
)

// snapshotAPI is the slice of the API the cache needs for population and
// single-path fallback lookups.
type snapshotAPI interface {
	SyncMetadata(ctx context.Context, directoryID string) (*leo.SyncMetadata, error)
	FileInfoByPath(ctx context.Context, directoryID, relativePath string) (*leo.FileRecord, error)
}

// refreshOp tracks one in-flight snapshot fetch so concurrent callers
// join it instead of stacking duplicate requests.
type refreshOp struct {
	done chan struct{}
	err  error
}

// PathCache maps normalized relative paths to server component IDs. Path
// comparison is case-insensitive with forward slashes, matching the
// server's treatment of filePathInDirectory. A miss falls back to a
// single-path server lookup so the cache stays usable while stale.
type PathCache struct {
	api         snapshotAPI
	directoryID string
	logger      *slog.Logger

	mu        sync.Mutex
	entries   map[string]string
	populated bool
	inflight  *refreshOp
}

// NewPathCache creates an empty cache for one directory. Call
// EnsurePopulated before relying on Lookup for bulk work.
func NewPathCache(api snapshotAPI, directoryID string, logger *slog.Logger) *PathCache {
	return &PathCache{
		api:         api,
		directoryID: directoryID,
		logger:      logger,
		entries:     make(map[string]string),
	}
}

func normalizeKey(relativePath string) string {
	return strings.ToLower(leo.NormalizePath(relativePath))
}

// EnsurePopulated fills the cache from a fresh server snapshot unless it
// is already populated. Concurrent callers share a single fetch.
func (c *PathCache) EnsurePopulated(ctx context.Context) error {
	c.mu.Lock()
	if c.populated {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Refresh replaces the cache contents with a fresh server snapshot. If a
// refresh is already running, the caller waits for that one instead of
// starting another.
func (c *PathCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if op := c.inflight; op != nil {
		c.mu.Unlock()
		select {
		case <-op.done:
			return op.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	op := &refreshOp{done: make(chan struct{})}
	c.inflight = op
	c.mu.Unlock()

	// Fetch outside the lock; Lookup and Add stay usable meanwhile.
	meta, err := c.api.SyncMetadata(ctx, c.directoryID)

	c.mu.Lock()
	if err != nil {
		op.err = fmt.Errorf("refreshing path cache: %w", err)
	} else {
		entries := make(map[string]string, len(meta.Files))
		for _, f := range meta.Files {
			entries[normalizeKey(f.FilePathInDirectory)] = f.ComponentID
		}
		c.entries = entries
		c.populated = true
		c.logger.Debug("path cache refreshed", slog.Int("entries", len(entries)))
	}
	c.inflight = nil
	c.mu.Unlock()

	close(op.done)
	return op.err
}

// Lookup resolves a relative path to its component ID. On a cache miss
// it asks the server for that single path and caches a hit. An empty ID
// with nil error means the server definitively has no record there;
// a non-nil error means the answer is unknown.
func (c *PathCache) Lookup(ctx context.Context, relativePath string) (string, error) {
	key := normalizeKey(relativePath)

	c.mu.Lock()
	id, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	rec, err := c.api.FileInfoByPath(ctx, c.directoryID, relativePath)
	if err != nil {
		if errors.Is(err, leo.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("looking up %s: %w", relativePath, err)
	}

	c.mu.Lock()
	c.entries[key] = rec.ComponentID
	c.mu.Unlock()

	return rec.ComponentID, nil
}

// Add records a freshly created file without a server round trip.
func (c *PathCache) Add(rec *leo.FileRecord) {
	c.mu.Lock()
	c.entries[normalizeKey(rec.FilePathInDirectory)] = rec.ComponentID
	c.mu.Unlock()
}

// Remove drops one path from the cache.
func (c *PathCache) Remove(relativePath string) {
	c.mu.Lock()
	delete(c.entries, normalizeKey(relativePath))
	c.mu.Unlock()
}

// Clear empties the cache and marks it unpopulated. It waits for any
// in-flight refresh to finish first so a stale snapshot cannot land
// after the clear.
func (c *PathCache) Clear(ctx context.Context) error {
	for {
		c.mu.Lock()
		op := c.inflight
		if op == nil {
			c.entries = make(map[string]string)
			c.populated = false
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		select {
		case <-op.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len returns the number of cached paths.
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
