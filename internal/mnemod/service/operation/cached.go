package operation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
	"github.com/mnemora/mnemora/pkg/logger"
	"github.com/mnemora/mnemora/pkg/utils/json"
)

// DefaultCacheTTL applies when no TTL is configured.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	result    map[string]interface{}
	expiresAt time.Time
}

// CachedHandler memoizes successful results of the inner handler, keyed by
// a digest of the operation name and the validated parameters. Entries
// expire after the configured TTL. Cache hits are marked with a
// "from_cache" field and returned as deep copies so callers cannot mutate
// the cached value.
type CachedHandler struct {
	inner Handler
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCached wraps the inner handler with a result cache. ttl <= 0 selects
// DefaultCacheTTL.
func NewCached(inner Handler, ttl time.Duration) *CachedHandler {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedHandler{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedHandler) Metadata() schema.Metadata {
	return c.inner.Metadata()
}

func (c *CachedHandler) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	key, err := c.cacheKey(params)
	if err != nil {
		// Unkeyable parameters (channels, funcs) skip the cache.
		logger.Debug("[Cache] %s: parameters not cacheable: %v", c.inner.Metadata().Name, err)
		return c.inner.Execute(ctx, params)
	}

	now := time.Now()

	c.mu.Lock()
	entry, hit := c.entries[key]
	if hit && now.Before(entry.expiresAt) {
		c.mu.Unlock()
		return copyResult(entry.result, true)
	}
	if hit {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	result, err := c.inner.Execute(ctx, params)
	if err != nil {
		return result, err
	}

	stored, copyErr := copyResult(result, false)
	if copyErr == nil {
		c.mu.Lock()
		c.entries[key] = cacheEntry{result: stored, expiresAt: now.Add(c.ttl)}
		c.mu.Unlock()
	}

	return result, nil
}

// Invalidate drops every cached entry.
func (c *CachedHandler) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len reports the number of live cache entries, for introspection.
func (c *CachedHandler) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachedHandler) cacheKey(params map[string]interface{}) (string, error) {
	payload := map[string]interface{}{
		"operation": c.inner.Metadata().Name,
		"params":    params,
	}
	// Map keys are serialized in sorted order, so equal parameter sets
	// always produce the same digest.
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func copyResult(in map[string]interface{}, fromCache bool) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(in)+1)
	if err := copier.CopyWithOption(&out, in, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	if fromCache {
		out["from_cache"] = true
	}
	return out, nil
}
