package noise

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity bounds the noise cache when the caller does not choose.
const DefaultCacheCapacity = 1 << 18

// Key identifies a cached sample: quantized coordinates plus the complete
// channel configuration.
type Key struct {
	QX, QZ int64
	Config ChannelConfig
}

// Cache stores sampled values. Implementations need not be safe for
// concurrent use; a Field owns its cache.
type Cache interface {
	Get(k Key) (float64, bool)
	// Add stores v and reports whether an older entry was evicted.
	Add(k Key, v float64) bool
	Purge()
	Len() int
	// Cap returns the maximum number of entries, or 0 when unbounded.
	Cap() int
}

// LRUCache is a bounded least-recently-used cache.
type LRUCache struct {
	c   *lru.Cache[Key, float64]
	cap int
}

// NewLRUCache returns a cache holding at most capacity entries.
func NewLRUCache(capacity int) (*LRUCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("noise: cache capacity must be positive, got %d", capacity)
	}
	c, err := lru.New[Key, float64](capacity)
	if err != nil {
		return nil, fmt.Errorf("noise: create lru: %w", err)
	}
	return &LRUCache{c: c, cap: capacity}, nil
}

func (l *LRUCache) Get(k Key) (float64, bool)  { return l.c.Get(k) }
func (l *LRUCache) Add(k Key, v float64) bool { return l.c.Add(k, v) }
func (l *LRUCache) Purge()                    { l.c.Purge() }
func (l *LRUCache) Len() int                  { return l.c.Len() }
func (l *LRUCache) Cap() int                  { return l.cap }

// MapCache grows without bound until purged.
type MapCache map[Key]float64

func NewMapCache() MapCache { return make(MapCache) }

func (m MapCache) Get(k Key) (float64, bool) {
	v, ok := m[k]
	return v, ok
}

func (m MapCache) Add(k Key, v float64) bool {
	m[k] = v
	return false
}

func (m MapCache) Purge()   { clear(m) }
func (m MapCache) Len() int { return len(m) }
func (m MapCache) Cap() int { return 0 }
