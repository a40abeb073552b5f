// Package ttl implements the soft-state table shared by both of a broadcast
// server's membership tables (spec §3: Client Registration Entry, Peer
// Server Entry). An entry survives only while it is periodically renewed;
// once its deadline passes, the next prune pass evicts it.
package ttl

import (
	"sync"
	"time"
)

// Table is a concurrency-safe map from key K to a value V plus a deadline.
// It is generalized from the teacher's per-record TTL bookkeeping
// (RecordTTL.GetRemainingTTL / IsExpired) so the server can reuse the exact
// same eviction logic for its clients map and its servers map.
type Table[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

// New returns an empty table.
func New[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{entries: make(map[K]entry[V])}
}

// Upsert inserts or renews the entry for key, setting its deadline to
// deadline regardless of whether it already existed — this is what spec §3
// means by "renewed on every ClientRegister from that endpoint".
func (t *Table[K, V]) Upsert(key K, value V, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = entry[V]{value: value, deadline: deadline}
}

// Remove deletes the entry for key, if present. Removing an absent key is a
// no-op, matching ClientUnregister/ServerUnregister for an endpoint that was
// never registered (or already evicted).
func (t *Table[K, V]) Remove(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// Get returns the current value for key and whether it is present. A
// present-but-expired entry (not yet pruned) is still returned; callers
// that must not observe it should call Prune first.
func (t *Table[K, V]) Get(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return e.value, ok
}

// Prune removes every entry whose deadline has passed as of now, returning
// the keys that were evicted.
func (t *Table[K, V]) Prune(now time.Time) []K {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []K
	for key, e := range t.entries {
		if now.After(e.deadline) {
			delete(t.entries, key)
			evicted = append(evicted, key)
		}
	}
	return evicted
}

// Snapshot returns a point-in-time copy of every entry currently tracked
// (expired entries not yet pruned included), keyed the same way as the table
// itself. It is used by the server's fan-out path, which
// must not hold the table lock while sending UDP datagrams.
func (t *Table[K, V]) Snapshot() map[K]V {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[K]V, len(t.entries))
	for key, e := range t.entries {
		out[key] = e.value
	}
	return out
}

// Len reports the number of entries currently tracked, live or not-yet-pruned.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
