// Package lru provides a byte-accounted, strictly ordered LRU cache.
//
// Unlike a capacity-by-count cache, eviction here is driven by the total
// number of bytes held across all entries (key + value + a fixed
// per-entry overhead), so a handful of large values can evict many small
// ones. Get and Set are O(1); the ordering list is a container/list.List
// of *entry values, addressed through a map[string]*list.Element handle -
// the idiomatic Go analogue of an index-based intrusive list: the
// *list.Element is a stable handle that survives relinking without the
// aliasing hazards of hand-rolled pointer nodes.
package lru

import (
	"container/list"
	"errors"
	"sync"
)

// entryOverhead approximates the fixed per-entry bookkeeping cost (map
// bucket, list element, struct headers) charged against max_bytes on top
// of the raw key+value length. It must stay constant so the accounting
// invariant (current_bytes == sum of accounted sizes) holds exactly.
const entryOverhead = 48

// ErrTooLarge is returned by Set when a single entry cannot fit in the
// cache even after evicting everything else.
var ErrTooLarge = errors.New("lru: entry too large")

// SpillFunc is invoked, synchronously, with the key and value of an entry
// just evicted from the cache, before it is discarded. It is the wiring
// point for the two-tier store's cold-storage spill.
type SpillFunc func(key, value string)

// RehydrateFunc is consulted on a Get miss. If it returns ok, the value is
// inserted back into the cache via the normal Set path (which may itself
// trigger eviction) and returned to the caller.
type RehydrateFunc func(key string) (value string, ok bool)

type entry struct {
	key   string
	value string
}

func accountedSize(key, value string) int64 {
	return int64(len(key)) + int64(len(value)) + entryOverhead
}

// Cache is a byte-bounded, strict-LRU key-value store. It is not
// internally synchronized beyond what's needed for standalone use; a
// worker that owns a Cache on a single goroutine needs no locking at all,
// matching the single-threaded-reactor concurrency model this cache is
// built for. The mutex below exists only so Cache remains safe to share
// across goroutines when used outside that model (e.g. from tests).
type Cache struct {
	mu      sync.Mutex
	order   *list.List
	index   map[string]*list.Element
	maxMem  int64
	curMem  int64
	spill   SpillFunc
	rehydrate RehydrateFunc
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithSpill registers the callback invoked on every eviction.
func WithSpill(fn SpillFunc) Option {
	return func(c *Cache) { c.spill = fn }
}

// WithRehydrate registers the callback consulted on every miss.
func WithRehydrate(fn RehydrateFunc) Option {
	return func(c *Cache) { c.rehydrate = fn }
}

// New creates a Cache bounded to maxBytes total accounted size.
func New(maxBytes int64, opts ...Option) *Cache {
	c := &Cache{
		order:  list.New(),
		index:  make(map[string]*list.Element),
		maxMem: maxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set inserts or replaces key's value. If the new entry cannot fit even
// after evicting every other entry, the cache is left untouched and
// ErrTooLarge is returned.
func (c *Cache) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(key, value)
}

func (c *Cache) setLocked(key, value string) error {
	newSize := accountedSize(key, value)
	if newSize > c.maxMem {
		return ErrTooLarge
	}

	if el, ok := c.index[key]; ok {
		old := el.Value.(*entry)
		c.curMem -= accountedSize(old.key, old.value)
		c.order.Remove(el)
		delete(c.index, key)
	}

	for c.curMem+newSize > c.maxMem && c.order.Len() > 0 {
		c.evictTail()
	}

	if c.curMem+newSize > c.maxMem {
		return ErrTooLarge
	}

	el := c.order.PushFront(&entry{key: key, value: value})
	c.index[key] = el
	c.curMem += newSize
	return nil
}

// evictTail discards the least-recently-used entry and, if a spill
// callback is configured, hands it the evicted key/value first.
func (c *Cache) evictTail() {
	tail := c.order.Back()
	if tail == nil {
		return
	}
	e := tail.Value.(*entry)
	c.curMem -= accountedSize(e.key, e.value)
	c.order.Remove(tail)
	delete(c.index, e.key)

	if c.spill != nil {
		c.spill(e.key, e.value)
	}
}

// Get returns key's value, moving it to most-recently-used position on a
// hit. On a miss it consults the configured rehydrate callback; a
// rehydrate hit is inserted via Set (which may itself evict) and
// returned.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	if el, ok := c.index[key]; ok {
		c.order.MoveToFront(el)
		value := el.Value.(*entry).value
		c.mu.Unlock()
		return value, true
	}
	rehydrate := c.rehydrate
	c.mu.Unlock()

	if rehydrate == nil {
		return "", false
	}
	value, ok := rehydrate(key)
	if !ok {
		return "", false
	}

	c.mu.Lock()
	_ = c.setLocked(key, value)
	c.mu.Unlock()
	return value, true
}

// Del removes key from the cache, reporting whether it was present.
func (c *Cache) Del(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return false
	}
	e := el.Value.(*entry)
	c.curMem -= accountedSize(e.key, e.value)
	c.order.Remove(el)
	delete(c.index, key)
	return true
}

// MemoryUsage returns the current accounted byte total.
func (c *Cache) MemoryUsage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curMem
}

// MaxMemory returns the configured capacity in bytes.
func (c *Cache) MaxMemory() int64 {
	return c.maxMem
}

// Size returns the number of entries currently cached.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
