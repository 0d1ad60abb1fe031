package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"shopify-uploader/internal/logging"
	"shopify-uploader/internal/state"
	"sync"
	"time"
)

const CacheFileName = "ai_enhanced_cache.json"

type cacheEntry struct {
	Title     string        `json:"title"`
	Output    EnhanceOutput `json:"output"`
	CreatedAt time.Time     `json:"created_at"`
}

// CachedEnhancer remembers product enhancements on disk, keyed by a hash of
// title and description, so a re-run does not pay for the same answer twice.
// Collection descriptions are not cached.
type CachedEnhancer struct {
	inner  Enhancer
	path   string
	logger logging.LoggerService

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCachedEnhancer(inner Enhancer, path string, logger logging.LoggerService) (*CachedEnhancer, error) {
	c := &CachedEnhancer{inner: inner, path: path, logger: logger, entries: map[string]cacheEntry{}}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("read ai cache %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		if logger != nil {
			logger.LogWarning(fmt.Sprintf("ai cache %s is unreadable, starting empty: %v", path, err))
		}
		c.entries = map[string]cacheEntry{}
	}
	return c, nil
}

func CacheKey(title, bodyHTML string) string {
	sum := sha256.Sum256([]byte(title + "||" + bodyHTML))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEnhancer) EnhanceProduct(ctx context.Context, in EnhanceInput) (EnhanceOutput, error) {
	key := CacheKey(in.Title, in.BodyHTML)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		if c.logger != nil {
			c.logger.Log(fmt.Sprintf("ai cache hit title=%s", in.Title))
		}
		return entry.Output, nil
	}

	out, err := c.inner.EnhanceProduct(ctx, in)
	if err != nil {
		return EnhanceOutput{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{Title: in.Title, Output: out, CreatedAt: time.Now().UTC()}
	if err := c.save(); err != nil && c.logger != nil {
		c.logger.LogWarning(fmt.Sprintf("ai cache save failed: %v", err))
	}
	return out, nil
}

func (c *CachedEnhancer) CollectionDescription(ctx context.Context, title, department string, samples []string) (string, error) {
	return c.inner.CollectionDescription(ctx, title, department, samples)
}

func (c *CachedEnhancer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachedEnhancer) save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	return state.WriteFileAtomic(c.path, data)
}
