package bot

import (
	"context"
	"sync"
	"time"
)

// Deduplicator remembers keys until their ttl passes.
type Deduplicator struct {
	locks sync.Map
	now   func() time.Time
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{now: time.Now}
}

// TryAcquire returns false while key is still held.
func (d *Deduplicator) TryAcquire(key string, ttl time.Duration) bool {
	now := d.now()
	expiry := now.Add(ttl)
	for {
		val, loaded := d.locks.LoadOrStore(key, expiry)
		if !loaded {
			return true
		}
		if now.Before(val.(time.Time)) {
			return false
		}
		if d.locks.CompareAndSwap(key, val, expiry) {
			return true
		}
	}
}

func (d *Deduplicator) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := d.now()
			d.locks.Range(func(key, value interface{}) bool {
				if now.After(value.(time.Time)) {
					d.locks.Delete(key)
				}
				return true
			})
		}
	}
}
