// Package opcache implements C8: an optional deferral layer in front of
// batch.Execute. A batch whose safety axis is semantics.SafetyNone may be
// queued instead of executed immediately; it (and everything queued before
// it) is flushed in submission order the next time a batch with safety
// network-or-higher executes, or when the cache itself is flushed at
// shutdown. The queue is bounded — when full it flushes synchronously
// rather than growing without limit.
package opcache

import (
	"context"
	"sync"

	"github.com/SpaceCafe/julea/batch"
	"github.com/SpaceCafe/julea/cmn/nlog"
	"github.com/SpaceCafe/julea/semantics"
)

// Cache holds batches deferred because they were submitted at
// semantics.SafetyNone while the cache was active.
type Cache struct {
	mu         sync.Mutex
	pending    []*batch.Batch
	maxPending int
}

// New creates a Cache that flushes synchronously once maxPending batches
// are queued.
func New(maxPending int) *Cache {
	if maxPending <= 0 {
		maxPending = 256
	}
	return &Cache{maxPending: maxPending}
}

// Execute defers b if its safety is none and there's room in the queue;
// otherwise it flushes whatever is pending (in submission order) and then
// runs b, returning b's own (success, error).
func (c *Cache) Execute(ctx context.Context, b *batch.Batch) (bool, error) {
	if b.Semantics().Safety() == semantics.SafetyNone {
		if c.tryDefer(b) {
			return true, nil
		}
		// queue is full: flush it, then fall through to execute b itself
		// immediately (there is no room left to defer it either).
		c.flushLocked()
		return batch.Execute(ctx, b)
	}
	c.flushLocked()
	return batch.Execute(ctx, b)
}

func (c *Cache) tryDefer(b *batch.Batch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) >= c.maxPending {
		return false
	}
	c.pending = append(c.pending, b)
	return true
}

// Flush executes every deferred batch in submission order. Call this at
// shutdown to guarantee nothing queued under safety=none is silently lost.
func (c *Cache) Flush(ctx context.Context) {
	c.flushLockedCtx(ctx)
}

func (c *Cache) flushLocked() { c.flushLockedCtx(context.Background()) }

func (c *Cache) flushLockedCtx(ctx context.Context) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, deferred := range pending {
		if _, err := batch.Execute(ctx, deferred); err != nil {
			nlog.Warningf("opcache: deferred batch failed on flush: %v", err)
		}
	}
}

// Len reports the number of batches currently deferred (diagnostics only).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
