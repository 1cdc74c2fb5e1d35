package common

import (
	"sync"
	"time"
)

// SlotCache tracks which slots have already been walked, so replayed blocks
// after a stream reconnect are dropped before decoding instead of relying on
// downstream dedup alone. Entries carry the block time for pruning decisions.
type SlotCache struct {
	mu    sync.RWMutex
	slots map[uint64]time.Time
}

// NewSlotCache creates an empty cache.
func NewSlotCache() *SlotCache {
	return &SlotCache{slots: make(map[uint64]time.Time)}
}

// Seen reports whether the slot was already recorded.
func (c *SlotCache) Seen(slot uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.slots[slot]
	return ok
}

// Record marks a slot as processed at the given block time.
func (c *SlotCache) Record(slot uint64, blockTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[slot] = blockTime
}

// BlockTime returns the recorded block time for a slot, if present.
func (c *SlotCache) BlockTime(slot uint64) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ts, ok := c.slots[slot]
	return ts, ok
}

// Size returns the number of tracked slots.
func (c *SlotCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

// PruneBefore drops entries older than the given slot and reports how many
// were removed. Callers prune periodically to bound memory; the replay window
// on reconnect is short, so only recent slots matter.
func (c *SlotCache) PruneBefore(slot uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for s := range c.slots {
		if s < slot {
			delete(c.slots, s)
			pruned++
		}
	}
	return pruned
}
