package memory

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/polybot/polybot/internal/cache"
)

// DefaultMaxEntries bounds a cache created without WithMaxEntries
const DefaultMaxEntries = 512

type entry struct {
	data      []byte
	expiresAt time.Time // Zero means no expiry
}

// Provider implements an in-memory LRU cache with per-entry expiry
type Provider struct {
	cache *lru.Cache[string, entry]
	now   func() time.Time
	mutex sync.Mutex
}

// Option configures a Provider
type Option func(*options)

type options struct {
	maxEntries int
	now        func() time.Time
}

// WithMaxEntries sets how many objects are kept before the least recently used one is evicted
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithClock replaces time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New returns a new Provider instance
func New(opts ...Option) *Provider {
	o := options{
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	// lru.New only fails for a non-positive size
	c, _ := lru.New[string, entry](o.maxEntries)

	return &Provider{
		cache: c,
		now:   o.now,
	}
}

// Get returns an object from the cache if it exists and has not expired
func (p *Provider) Get(ctx context.Context, key string) (data []byte, err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	e, exists := p.cache.Get(key)
	if !exists {
		return nil, cache.ErrNotFound
	}

	if !e.expiresAt.IsZero() && !p.now().Before(e.expiresAt) {
		p.cache.Remove(key)
		return nil, cache.ErrNotFound
	}

	return e.data, nil
}

// Set adds an object to the cache, a zero ttl keeps it until it is evicted
func (p *Provider) Set(ctx context.Context, key string, data []byte, ttl time.Duration) (err error) {
	e := entry{data: data}
	if ttl > 0 {
		e.expiresAt = p.now().Add(ttl)
	}

	p.mutex.Lock()
	p.cache.Add(key, e)
	p.mutex.Unlock()

	return nil
}

// Delete removes an object from the cache, removing a missing key is not an error
func (p *Provider) Delete(ctx context.Context, key string) (err error) {
	p.mutex.Lock()
	p.cache.Remove(key)
	p.mutex.Unlock()

	return nil
}

// Len returns the number of cached objects, expired ones included until they are looked up or evicted
func (p *Provider) Len() int {
	return p.cache.Len()
}

// Shutdown shuts down the cache
func (p *Provider) Shutdown() {}
