package api

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/therascope/therascope/internal/reporting"
	"github.com/therascope/therascope/pkg/scoring"
)

// ReportCache is a thread-safe LRU cache for evaluated session reports.
// Entries for a session are dropped whenever a block is committed to it, and
// the whole cache is dropped when a planned set changes.
type ReportCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*reporting.Archived
	order   []string // oldest first
}

// NewReportCache creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 100.
func NewReportCache(maxSize int) *ReportCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &ReportCache{
		maxSize: maxSize,
		entries: make(map[string]*reporting.Archived),
	}
}

// NewReportCacheFromEnv creates a cache with size from REPORT_CACHE_SIZE env var.
func NewReportCacheFromEnv() *ReportCache {
	size := 100
	if v := os.Getenv("REPORT_CACHE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return NewReportCache(size)
}

func cacheKey(sessionID string, mode scoring.SortMode) string {
	return sessionID + "|" + string(mode)
}

// Get retrieves a report from the cache, or nil if not found.
func (c *ReportCache) Get(key string) *reporting.Archived {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.entries[key]
	if !ok {
		return nil
	}

	// Move to end (most recently used)
	c.moveToEnd(key)
	return a
}

// Put adds a report to the cache, evicting the oldest if full.
func (c *ReportCache) Put(key string, a *reporting.Archived) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = a
		c.moveToEnd(key)
		return
	}

	// Evict oldest if at capacity
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = a
	c.order = append(c.order, key)
}

// Invalidate drops every cached report of a session.
func (c *ReportCache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := sessionID + "|"
	kept := c.order[:0]
	for _, k := range c.order {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept
}

// Purge drops every cached report. Entries are keyed by session, so a change
// to a program's planned set cannot be narrowed further.
func (c *ReportCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*reporting.Archived)
	c.order = nil
}

// Len returns the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ReportCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}
