// Package cache is the process-wide TTL cache owned by the application root.
// Keys are "<type>:<id>" so a whole type can be invalidated at once, and
// every invalidation is announced on subscriber channels.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type EventKind string

const (
	EventSet         EventKind = "set"
	EventInvalidated EventKind = "invalidated"
)

// Event announces a change. Key is empty for type-wide invalidations.
// Remote marks events applied on behalf of another instance.
type Event struct {
	Kind   EventKind `json:"kind"`
	Type   string    `json:"type,omitempty"`
	Key    string    `json:"key,omitempty"`
	Remote bool      `json:"-"`
}

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
		subs:    make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds "<type>:<id>".
func Key(typ, id string) string { return typ + ":" + id }

func typeOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Get returns a live value. Expired entries are dropped on read.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value. A ttl <= 0 never expires.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	c.publish(Event{Kind: EventSet, Type: typeOf(key), Key: key})
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.apply(Event{Kind: EventInvalidated, Type: typeOf(key), Key: key})
}

// InvalidateType drops every key of typ and returns how many were live.
func (c *Cache) InvalidateType(typ string) int {
	return c.apply(Event{Kind: EventInvalidated, Type: typ})
}

// apply performs an invalidation and announces it.
func (c *Cache) apply(ev Event) int {
	removed := 0
	c.mu.Lock()
	if ev.Key != "" {
		if _, ok := c.entries[ev.Key]; ok {
			delete(c.entries, ev.Key)
			removed = 1
		}
	} else {
		prefix := ev.Type + ":"
		for k := range c.entries {
			if strings.HasPrefix(k, prefix) {
				delete(c.entries, k)
				removed++
			}
		}
	}
	c.mu.Unlock()
	c.publish(ev)
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Subscribe returns a channel of events and a cancel func. Events are
// dropped for a subscriber whose buffer is full.
func (c *Cache) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Cache) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// GetAs is Get with a type assertion.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Remember returns the cached value for key or loads, stores and returns it.
// Load errors are not cached.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if v, ok := GetAs[T](c, key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}
