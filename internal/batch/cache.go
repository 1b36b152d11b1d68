package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/pydefs/internal/extract"
)

// RecordCache memoizes successful extractions by content hash. Records are
// stored and returned as clones so every caller owns what it receives.
type RecordCache struct {
	cache otter.Cache[string, *extract.ModuleRecord]
}

// NewRecordCache creates a cache holding up to capacity records.
func NewRecordCache(capacity int) (*RecordCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}

	cache, err := otter.MustBuilder[string, *extract.ModuleRecord](capacity).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build record cache: %w", err)
	}

	return &RecordCache{cache: cache}, nil
}

// Get returns a copy of the record cached for content.
func (c *RecordCache) Get(content []byte) (*extract.ModuleRecord, bool) {
	record, ok := c.cache.Get(contentKey(content))
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// Set stores a copy of record for content.
func (c *RecordCache) Set(content []byte, record *extract.ModuleRecord) {
	c.cache.Set(contentKey(content), record.Clone())
}

// Close stops the cache's background maintenance.
func (c *RecordCache) Close() {
	c.cache.Close()
}

func contentKey(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
