package memcache

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

type expirationKind int

const (
	expireNever expirationKind = iota
	expireSliding
	expireAbsolute
)

// Expiration describes how a cache entry ages out. The zero value never
// expires; "infinite" is its own mode, not a large finite duration.
type Expiration struct {
	kind     expirationKind
	sliding  time.Duration
	deadline time.Time
}

// NoExpiration keeps the entry until it is removed explicitly.
func NoExpiration() Expiration {
	return Expiration{kind: expireNever}
}

// Sliding expires the entry d after its last access; every hit restarts the
// countdown.
func Sliding(d time.Duration) Expiration {
	return Expiration{kind: expireSliding, sliding: d}
}

// AbsoluteAt expires the entry at the given instant regardless of access.
func AbsoluteAt(t time.Time) Expiration {
	return Expiration{kind: expireAbsolute, deadline: t}
}

type entry struct {
	value    any
	kind     expirationKind
	sliding  time.Duration
	deadline time.Time
}

func (e *entry) expired(now time.Time) bool {
	return e.kind != expireNever && now.After(e.deadline)
}

// touch restarts a sliding countdown on access.
func (e *entry) touch(now time.Time) {
	if e.kind == expireSliding {
		e.deadline = now.Add(e.sliding)
	}
}

// Cache is a per-process key/value store with expiring entries and nested
// hash buckets. All operations are safe under arbitrary concurrent callers;
// hash operations are atomic per bucket. A key maps to at most one live
// entry, and every eviction deregisters the key so pattern removal never
// operates on stale names.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// New creates a cache and starts its janitor. janitorInterval <= 0 disables
// the background sweep; expired entries are then reclaimed lazily on access.
func New(janitorInterval time.Duration) *Cache {
	c := &Cache{
		entries:     make(map[string]*entry),
		stopJanitor: make(chan struct{}),
	}
	if janitorInterval > 0 {
		go c.janitor(janitorInterval)
	}
	return c
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopJanitor:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Close stops the janitor. The cache stays usable afterwards.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopJanitor) })
}

// live returns the entry for key, evicting it first if it has expired.
// Callers hold c.mu.
func (c *Cache) live(key string, now time.Time) (*entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		return nil, false
	}
	return e, true
}

// Get returns the value stored under key. A hit restarts a sliding
// expiration countdown.
func (c *Cache) Get(key string) (any, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key, now)
	if !ok {
		return nil, false
	}
	e.touch(now)
	return e.value, true
}

// Insert stores value under key, overwriting any existing entry and
// restarting the expiration timer.
func (c *Cache) Insert(key string, value any, exp Expiration) {
	now := time.Now()
	e := &entry{value: value, kind: exp.kind, sliding: exp.sliding, deadline: exp.deadline}
	if exp.kind == expireSliding {
		e.deadline = now.Add(exp.sliding)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

// Remove deletes the entry under key. Removing an absent key is a no-op.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// RemoveByPattern removes every key matching the regular expression. The
// match runs against a snapshot of key names taken at call time; keys
// inserted while the scan runs are not covered.
func (c *Cache) RemoveByPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid removal pattern %q: %w", pattern, err)
	}

	for _, key := range c.Keys() {
		if re.MatchString(key) {
			c.Remove(key)
		}
	}
	return nil
}

// Keys returns a snapshot of the live key names.
func (c *Cache) Keys() []string {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Stats returns the live entry count and an approximate payload size in
// bytes. Only string, []byte and hash-bucket payloads contribute to the
// size; opaque values count as zero. Reading stats does not touch sliding
// expirations.
func (c *Cache) Stats() (entries int, bytes int64) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.expired(now) {
			continue
		}
		entries++
		bytes += int64(len(key)) + approxSize(e.value)
	}
	return entries, bytes
}

func approxSize(v any) int64 {
	switch val := v.(type) {
	case string:
		return int64(len(val))
	case []byte:
		return int64(len(val))
	case map[string]any:
		var n int64
		for f, fv := range val {
			n += int64(len(f)) + approxSize(fv)
		}
		return n
	default:
		return 0
	}
}

// HashGet returns one field of a hash bucket.
func (c *Cache) HashGet(key, field string) (any, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key, now)
	if !ok {
		return nil, false
	}
	bucket, ok := e.value.(map[string]any)
	if !ok {
		return nil, false
	}
	e.touch(now)
	v, ok := bucket[field]
	return v, ok
}

// HashGetAll returns a copy of the bucket under key. An absent key yields an
// empty map, not an error.
func (c *Cache) HashGetAll(key string) map[string]any {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key, now)
	if !ok {
		return map[string]any{}
	}
	bucket, ok := e.value.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	e.touch(now)
	out := make(map[string]any, len(bucket))
	for f, v := range bucket {
		out[f] = v
	}
	return out
}

// HashSet writes one field of a hash bucket, creating the bucket on first
// use. A nil value deletes the field; deleting the last field removes the
// bucket entry entirely, so no empty buckets persist.
func (c *Cache) HashSet(key, field string, value any) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live(key, now)
	if !ok {
		if value == nil {
			return
		}
		c.entries[key] = &entry{
			value: map[string]any{field: value},
			kind:  expireNever,
		}
		return
	}

	bucket, ok := e.value.(map[string]any)
	if !ok {
		// Plain entry overwritten by a hash write.
		if value == nil {
			return
		}
		e.value = map[string]any{field: value}
		return
	}

	if value == nil {
		delete(bucket, field)
		if len(bucket) == 0 {
			delete(c.entries, key)
		}
		return
	}
	bucket[field] = value
}
