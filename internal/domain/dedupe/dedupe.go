// Package dedupe tracks idempotency keys for lock requests.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxSize is the key capacity used when WithMaxSize is not given.
const DefaultMaxSize = 50000

// Deduper records idempotency keys so a lock request is enqueued at most once.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if not.
	// Returns true if key was already recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so the client may retry, e.g. after the queue
	// rejected the job or the ledger call failed.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key      string
	recorded time.Time
}

// inMemoryDeduper keeps keys in insertion order; the oldest key is evicted
// first once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if el, ok := d.seen[key]; ok {
		if !d.expired(el.Value.(*entry), now) {
			return true
		}
		d.removeLocked(el)
	}

	if d.maxSize > 0 {
		for d.order.Len() >= d.maxSize {
			d.removeLocked(d.order.Back())
		}
	}
	d.seen[key] = d.order.PushFront(&entry{key: key, recorded: now})
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[key]; ok {
		d.removeLocked(el)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

func (d *inMemoryDeduper) expired(e *entry, now time.Time) bool {
	return d.ttl > 0 && now.Sub(e.recorded) >= d.ttl
}

// removeLocked must be called with d.mu held.
func (d *inMemoryDeduper) removeLocked(el *list.Element) {
	delete(d.seen, el.Value.(*entry).key)
	d.order.Remove(el)
}
