package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"money-saver/pkg/cache"
)

// Config holds configuration for the in-process cache.
type Config struct {
	// Name is the layer identifier. Default: "memory"
	Name string

	// MaxEntries bounds the cache; the least recently used entry is evicted
	// when full. Zero means unbounded.
	MaxEntries int

	// DefaultTTL applies when Set is called with a zero ttl. Default: 1h
	DefaultTTL time.Duration

	// CleanupInterval is how often expired entries are swept. Default: 1m
	CleanupInterval time.Duration
}

// Cache is the L1 layer: a mutex-guarded map with TTL expiry, LRU eviction
// and a background sweeper.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front is most recently used
	config  Config
	now     func() time.Time

	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// New creates the cache and starts its sweeper.
func New(config Config) *Cache {
	if config.Name == "" {
		config.Name = "memory"
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	c := &Cache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		config:  config,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.sweep()

	return c
}

// Get returns a copy of the stored bytes.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, cache.ErrClosed
	}
	el, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	e := el.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		return nil, cache.ErrMiss
	}
	c.lru.MoveToFront(el)

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value, evicting the least recently used entry if full.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return cache.ErrClosed
	}

	expiresAt := c.now().Add(ttl)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = stored
		e.expiresAt = expiresAt
		c.lru.MoveToFront(el)
		return nil
	}

	if c.config.MaxEntries > 0 && c.lru.Len() >= c.config.MaxEntries {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	c.entries[key] = c.lru.PushFront(&entry{key: key, value: stored, expiresAt: expiresAt})
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	return nil
}

// TTL implements cache.TTLReader.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return 0, cache.ErrMiss
	}
	left := el.Value.(*entry).expiresAt.Sub(c.now())
	if left <= 0 {
		return 0, cache.ErrMiss
	}
	return left, nil
}

// Name returns the layer name.
func (c *Cache) Name() string {
	return c.config.Name
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close stops the sweeper and drops all entries. Calling Close twice is safe.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()

	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.mu.Unlock()
	return nil
}

func (c *Cache) sweep() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.removeElement(el)
		}
		el = prev
	}
}

// removeElement must be called with mu held.
func (c *Cache) removeElement(el *list.Element) {
	c.lru.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}
