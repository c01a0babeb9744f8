// Package dedupe tracks client request ids so retried requests are applied
// at most once.
package dedupe

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSize bounds the number of remembered ids.
const DefaultMaxSize = 50000

// Deduper records seen request ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a request that failed after being recorded can
	// be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps the most recently recorded ids in an LRU cache; the
// oldest id is evicted once the cache is full.
type inMemoryDeduper struct {
	cache   *lru.Cache[string, time.Time]
	maxSize int
	now     func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	cache, err := lru.New[string, time.Time](d.maxSize)
	if err != nil {
		// Only a non-positive size fails and options reject those.
		panic(err)
	}
	d.cache = cache
	return d
}

// SeenAndRecord reports whether id was already recorded and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.cache.ContainsOrAdd(id, d.now())
	return seen
}

// Unrecord removes id from the cache.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.cache.Remove(id)
}

// Size returns the current number of remembered ids.
func (d *inMemoryDeduper) Size() int64 {
	return int64(d.cache.Len())
}

// Key scopes a client request id to one match.
func Key(matchID, requestID string) string {
	return matchID + "/" + requestID
}
