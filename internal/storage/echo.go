package storage

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// maxPendingWrites bounds how many unconfirmed own writes are remembered per key.
const maxPendingWrites = 16

// contentTracker lets backends whose change signals cannot tell who wrote
// drop echoes of their own writes. Per key it keeps the digests of this
// handle's writes the watcher has not seen yet, and the digest of the last
// content the watcher saw. A signal counts only when the content is neither.
type contentTracker struct {
	mu   sync.Mutex
	keys map[string]*trackedKey
}

type trackedKey struct {
	own     []uint64 // oldest first
	last    uint64
	hasLast bool
}

func newContentTracker() *contentTracker {
	return &contentTracker{keys: make(map[string]*trackedKey)}
}

func (t *contentTracker) key(key string) *trackedKey {
	k, ok := t.keys[key]
	if !ok {
		k = &trackedKey{}
		t.keys[key] = k
	}
	return k
}

// record notes value as written by this handle. Call it before the write lands.
func (t *contentTracker) record(key string, value []byte) {
	sum := xxhash.Sum64(value)
	t.mu.Lock()
	defer t.mu.Unlock()
	k := t.key(key)
	k.own = append(k.own, sum)
	if len(k.own) > maxPendingWrites {
		k.own = slices.Delete(k.own, 0, len(k.own)-maxPendingWrites)
	}
}

// forget drops a recorded write that never landed.
func (t *contentTracker) forget(key string, value []byte) {
	sum := xxhash.Sum64(value)
	t.mu.Lock()
	defer t.mu.Unlock()
	k := t.key(key)
	if i := slices.Index(k.own, sum); i != -1 {
		k.own = slices.Delete(k.own, i, i+1)
	}
}

// observe reports whether value, just read back after a change signal, is
// news to this handle. Seeing one of our own writes also retires every older
// own write, since the store has moved past them.
func (t *contentTracker) observe(key string, value []byte) bool {
	sum := xxhash.Sum64(value)
	t.mu.Lock()
	defer t.mu.Unlock()
	k := t.key(key)
	seenBefore := k.hasLast && k.last == sum
	k.last, k.hasLast = sum, true
	if i := slices.Index(k.own, sum); i != -1 {
		k.own = slices.Delete(k.own, 0, i+1)
		return false
	}
	return !seenBefore
}
