package generators

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileFetcher is the slice of the engine client the cache needs.
type fileFetcher interface {
	FetchFile(ctx context.Context, filename, subfolder, fileType string) ([]byte, error)
}

// ArtifactCache keeps fetched artifact files on disk so the browser can
// download them through the panel without talking to the engine directly,
// and repeated downloads do not re-fetch.
type ArtifactCache struct {
	fetcher   fileFetcher
	directory string
	ttl       time.Duration
	mu        sync.RWMutex
	hits      int64
	misses    int64
}

// NewArtifactCache creates a cache rooted at directory. Entries older than
// ttl are dropped on access; ttl of zero disables expiry.
func NewArtifactCache(fetcher fileFetcher, directory string, ttl time.Duration) *ArtifactCache {
	return &ArtifactCache{fetcher: fetcher, directory: directory, ttl: ttl}
}

// Initialize ensures the cache directory exists and sweeps expired files.
func (c *ArtifactCache) Initialize() error {
	if err := os.MkdirAll(c.directory, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if c.ttl == 0 {
		return nil
	}

	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > c.ttl {
			_ = os.Remove(filepath.Join(c.directory, entry.Name()))
		}
	}
	return nil
}

// Get returns the artifact file, serving from disk when present and
// fetching from the engine otherwise.
func (c *ArtifactCache) Get(ctx context.Context, filename, subfolder, fileType string) ([]byte, error) {
	path := c.entryPath(filename, subfolder, fileType)

	c.mu.RLock()
	data, err := os.ReadFile(path)
	c.mu.RUnlock()
	if err == nil && (c.ttl == 0 || !c.expired(path)) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return data, nil
	}

	data, err = c.fetcher.FetchFile(ctx, filename, subfolder, fileType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artifact %s: %w", filename, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if err := os.WriteFile(path, data, 0644); err != nil {
		// Serving the fetched bytes matters more than persisting them.
		return data, nil
	}
	return data, nil
}

// Stats reports hit/miss counters.
func (c *ArtifactCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *ArtifactCache) entryPath(filename, subfolder, fileType string) string {
	sum := md5.Sum([]byte(filename + "|" + subfolder + "|" + fileType))
	return filepath.Join(c.directory, hex.EncodeToString(sum[:]))
}

func (c *ArtifactCache) expired(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > c.ttl
}
