package cache

import (
	"container/list"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dendrascience/archivefs/archive"
)

// DefaultMaxBytes is the budget used when none is configured.
const DefaultMaxBytes int64 = 64 << 20

// Cache is a byte-budgeted LRU of entry bodies keyed by stream token.
type Cache struct {
	mu       sync.Mutex
	maxBytes int64
	bytes    int64
	lru      *list.List // front is most recently used
	slots    map[archive.Token]*list.Element
	stats    Stats
	log      logrus.FieldLogger
}

type slot struct {
	key  archive.Token
	data []byte
	refs int
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Rejected  uint64 // inserts that could not fit in the budget
	Entries   int
	Bytes     int64
	MaxBytes  int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger that receives insert and evict events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a cache holding at most maxBytes of entry bodies. Negative
// values are treated as zero, which keeps only empty bodies.
func New(maxBytes int64, opts ...Option) *Cache {
	if maxBytes < 0 {
		maxBytes = 0
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Cache{
		maxBytes: maxBytes,
		lru:      list.New(),
		slots:    make(map[archive.Token]*list.Element),
		log:      discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ref pins one cached body. Release must be called exactly once when the
// caller is done reading; extra calls are ignored.
type Ref struct {
	c    *Cache
	s    *slot
	once sync.Once
}

// Bytes returns the pinned body. It must not be modified.
func (r *Ref) Bytes() []byte {
	return r.s.data
}

// Release unpins the body, making it eligible for eviction again.
func (r *Ref) Release() {
	r.once.Do(func() {
		r.c.mu.Lock()
		r.s.refs--
		r.c.mu.Unlock()
	})
}

func (c *Cache) pin(e *list.Element) *Ref {
	s := e.Value.(*slot)
	s.refs++
	c.lru.MoveToFront(e)
	return &Ref{c: c, s: s}
}

// Acquire pins and returns the body stored under key.
func (c *Cache) Acquire(key archive.Token) (*Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.slots[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return c.pin(e), true
}

// Pin is Acquire without touching the hit and miss counters. It is for
// callers that already counted the lookup.
func (c *Cache) Pin(key archive.Token) (*Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.slots[key]
	if !ok {
		return nil, false
	}
	return c.pin(e), true
}

// Insert stores data under key and returns it pinned. If key is already
// present the existing body is pinned instead and data is dropped. When the
// budget cannot be met without evicting pinned entries, nothing is stored
// and ok is false; the caller still owns data and may serve it directly.
func (c *Cache) Insert(key archive.Token, data []byte) (ref *Ref, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.slots[key]; exists {
		return c.pin(e), true
	}

	size := int64(len(data))
	if !c.makeRoom(size) {
		c.stats.Rejected++
		c.log.WithFields(logrus.Fields{
			"token": key,
			"size":  size,
			"used":  c.bytes,
		}).Debug("cache insert rejected")
		return nil, false
	}

	s := &slot{key: key, data: data}
	c.slots[key] = c.lru.PushFront(s)
	c.bytes += size
	c.log.WithFields(logrus.Fields{"token": key, "size": size}).Debug("cache insert")
	return c.pin(c.slots[key]), true
}

// makeRoom evicts unpinned entries, oldest first, until size more bytes
// fit. It evicts nothing when the target is unreachable. Callers hold mu.
func (c *Cache) makeRoom(size int64) bool {
	if size > c.maxBytes {
		return false
	}
	if c.bytes+size <= c.maxBytes {
		return true
	}

	var evictable int64
	for e := c.lru.Back(); e != nil; e = e.Prev() {
		if s := e.Value.(*slot); s.refs == 0 {
			evictable += int64(len(s.data))
		}
	}
	if c.bytes-evictable+size > c.maxBytes {
		return false
	}

	for e := c.lru.Back(); e != nil && c.bytes+size > c.maxBytes; {
		prev := e.Prev()
		if s := e.Value.(*slot); s.refs == 0 {
			c.lru.Remove(e)
			delete(c.slots, s.key)
			c.bytes -= int64(len(s.data))
			c.stats.Evictions++
			c.log.WithFields(logrus.Fields{"token": s.key, "size": len(s.data)}).Debug("cache evict")
		}
		e = prev
	}
	return true
}

// Contains reports whether key is cached, without touching recency.
func (c *Cache) Contains(key archive.Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.slots[key]
	return ok
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	st.Entries = len(c.slots)
	st.Bytes = c.bytes
	st.MaxBytes = c.maxBytes
	return st
}
