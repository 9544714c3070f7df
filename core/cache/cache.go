// Package cache implements the endpoint's PacketCache: it retains every
// outbound fragment until its ack arrives, and counts NACKs seen per key
// so the RetransmissionEngine can trigger a reflood once a path degrades.
//
// This corresponds to the teacher's core/ack.Tracker in shape (a
// mutex-guarded map keyed by an identifier, entries removed on
// resolution) but not in lifecycle: the cache has no timeout/retry loop
// of its own — resends here are NACK-driven only, never timer-driven.
package cache

import (
	"sync"

	"github.com/overlaynet/endpoint/core/packet"
)

// Entry is one cached outbound fragment and the number of NACKs observed
// for it so far.
type Entry struct {
	Packet    *packet.Packet
	NackCount int
}

// Cache retains outbound fragment packets keyed by (session_id,
// fragment_index) until an Ack consumes them. It performs no time-based
// eviction; it is bounded only by the number of in-flight sessions.
type Cache struct {
	mu      sync.Mutex
	entries map[packet.CacheKey]*Entry
}

// New creates an empty PacketCache.
func New() *Cache {
	return &Cache{entries: make(map[packet.CacheKey]*Entry)}
}

// Insert stores pkt under its (session_id, fragment_index) key. A
// duplicate insert on an existing key replaces the stored packet and
// resets its nack count to zero.
func (c *Cache) Insert(pkt *packet.Packet) {
	key, ok := pkt.CacheKey()
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &Entry{Packet: pkt}
}

// Take removes and returns the entry for key, used when an Ack arrives.
// A miss is non-fatal and reported via the second return value.
func (c *Cache) Take(key packet.CacheKey) (*packet.Packet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	delete(c.entries, key)
	return e.Packet, true
}

// GetAndBump returns the cached packet for key along with its
// post-increment NACK count, used when a NACK arrives. The entry remains
// cached (resends keep the entry until an Ack or abandonment).
func (c *Cache) GetAndBump(key packet.CacheKey) (*packet.Packet, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, 0, false
	}
	e.NackCount++
	return e.Packet, e.NackCount, true
}

// Len returns the number of currently cached entries, for metrics/tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
