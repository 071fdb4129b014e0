package heap

import (
	"sync"

	"github.com/orizon-lang/dongvm/internal/pool"
	"github.com/orizon-lang/dongvm/internal/value"
)

// Buckets is the fixed bucket-array width from the original hash.c
// (HASH_BUCKETS). Each bucket is an ordered singly linked list of items,
// sorted ascending by key for deterministic lookup/insert and early
// termination (spec.md §3/§4.3).
const Buckets = 256

type hashItem struct {
	key    string
	scalar pool.Handle
	next   *hashItem
}

// Hash is a string-keyed map with 256 chained, sorted buckets. Item
// values are scalar handles (owned by the hash) so that assignments
// through a hash entry share the same scalar binding as any other
// reference to it, matching spec.md §3's "hash-keyed scalar bindings".
type Hash struct {
	mu      sync.Mutex
	buckets [Buckets]*hashItem
	scalars *Scalars
}

// Hashes is the pool of Hash objects.
type Hashes struct {
	pool    *pool.Pool[*Hash]
	scalars *Scalars
}

// NewHashes creates an empty hash pool. scalars is the scalar pool that
// auto-vivified hash entries allocate their value cells from.
func NewHashes(scalars *Scalars) *Hashes {
	h := &Hashes{scalars: scalars}
	h.pool = pool.New[*Hash](func(hv **Hash) {
		hash := *hv
		if hash == nil {
			return
		}
		for _, b := range hash.buckets {
			for item := b; item != nil; item = item.next {
				hash.scalars.Release(item.scalar)
			}
		}
		*hv = nil
	})
	return h
}

// Allocate creates a fresh empty hash and returns its handle. Hashes are
// always allocated SHARED: spec.md §4.3 requires "per-hash mutex
// serializes all structural ops" unconditionally, so the pool slot
// always gets one regardless of the caller's request.
func (h *Hashes) Allocate() pool.Handle {
	handle := h.pool.Allocate(true)
	*h.pool.At(handle) = &Hash{scalars: h.scalars}
	return handle
}

// Reference increments handle's refcount.
func (h *Hashes) Reference(handle pool.Handle) pool.Handle { return h.pool.Reference(handle) }

// Release decrements handle's refcount, releasing every owned scalar at
// zero.
func (h *Hashes) Release(handle pool.Handle) { h.pool.Release(handle) }

func (h *Hashes) get(handle pool.Handle) *Hash {
	h.pool.Lock(handle)
	defer h.pool.Unlock(handle)
	return *h.pool.At(handle)
}

// oneAtATime is Bob Jenkins' one-at-a-time byte mixer, exactly as used by
// the original hash.c ("it's good enough for perl").
func oneAtATime(key string) uint32 {
	var hash uint32
	for i := 0; i < len(key); i++ {
		hash += uint32(key[i])
		hash += hash << 10
		hash ^= hash >> 6
	}
	hash += hash << 3
	hash ^= hash >> 11
	hash += hash << 15
	return hash
}

func bucketIndex(key string) uint32 {
	return oneAtATime(key) % Buckets
}

// KeyItem returns a handle to the hash entry's value scalar, creating it
// (auto-vivifying) on first access. The returned handle has been
// referenced on the caller's behalf — callers must Release it when done,
// exactly as hash_key_item's doc comment specifies.
func (h *Hashes) KeyItem(handle pool.Handle, key value.Value) pool.Handle {
	skey := key.ToString()
	hash := h.get(handle)
	hash.mu.Lock()
	defer hash.mu.Unlock()

	idx := bucketIndex(skey)
	var prev *hashItem
	item := hash.buckets[idx]
	for item != nil {
		switch {
		case item.key == skey:
			return hash.scalars.Reference(item.scalar)
		case item.key > skey:
			newItem := &hashItem{key: skey, scalar: hash.scalars.Allocate(false), next: item}
			if prev != nil {
				prev.next = newItem
			} else {
				hash.buckets[idx] = newItem
			}
			return hash.scalars.Reference(newItem.scalar)
		default:
			prev = item
			item = item.next
		}
	}
	// Ran off the end of the (sorted) bucket: key sorts after everything
	// seen so far, so append.
	newItem := &hashItem{key: skey, scalar: hash.scalars.Allocate(false)}
	if prev != nil {
		prev.next = newItem
	} else {
		hash.buckets[idx] = newItem
	}
	return hash.scalars.Reference(newItem.scalar)
}

// KeyDelete removes key's entry if present; a miss is a no-op success,
// matching hash_key_delete's "does nothing" contract (spec.md §4.3/§7).
func (h *Hashes) KeyDelete(handle pool.Handle, key value.Value) {
	skey := key.ToString()
	hash := h.get(handle)
	hash.mu.Lock()
	defer hash.mu.Unlock()

	idx := bucketIndex(skey)
	var prev *hashItem
	item := hash.buckets[idx]
	for item != nil {
		switch {
		case item.key == skey:
			if prev != nil {
				prev.next = item.next
			} else {
				hash.buckets[idx] = item.next
			}
			hash.scalars.Release(item.scalar)
			return
		case item.key > skey:
			return // sorted past where it would be: doesn't exist
		default:
			prev = item
			item = item.next
		}
	}
}

// KeyExists reports whether key currently has an entry.
func (h *Hashes) KeyExists(handle pool.Handle, key value.Value) bool {
	skey := key.ToString()
	hash := h.get(handle)
	hash.mu.Lock()
	defer hash.mu.Unlock()

	idx := bucketIndex(skey)
	for item := hash.buckets[idx]; item != nil; item = item.next {
		switch {
		case item.key == skey:
			return true
		case item.key > skey:
			return false
		}
	}
	return false
}

// Keys returns every key currently bound, in bucket/chain order (not
// sorted globally — only each chain is sorted).
func (h *Hashes) Keys(handle pool.Handle) []string {
	hash := h.get(handle)
	hash.mu.Lock()
	defer hash.mu.Unlock()
	var keys []string
	for _, b := range hash.buckets {
		for item := b; item != nil; item = item.next {
			keys = append(keys, item.key)
		}
	}
	return keys
}

// Values returns a deep copy of every bound value, in the same order as
// Keys.
func (h *Hashes) Values(handle pool.Handle) []value.Value {
	hash := h.get(handle)
	hash.mu.Lock()
	var handles []pool.Handle
	for _, b := range hash.buckets {
		for item := b; item != nil; item = item.next {
			handles = append(handles, item.scalar)
		}
	}
	hash.mu.Unlock()

	vals := make([]value.Value, len(handles))
	for i, sh := range handles {
		vals[i] = hash.scalars.Get(sh)
	}
	return vals
}

// Pairs returns parallel keys/values, equivalent to calling Keys and
// Values under a single lock so the two slices stay consistent with each
// other.
func (h *Hashes) Pairs(handle pool.Handle) ([]string, []value.Value) {
	hash := h.get(handle)
	hash.mu.Lock()
	var keys []string
	var handles []pool.Handle
	for _, b := range hash.buckets {
		for item := b; item != nil; item = item.next {
			keys = append(keys, item.key)
			handles = append(handles, item.scalar)
		}
	}
	hash.mu.Unlock()

	vals := make([]value.Value, len(handles))
	for i, sh := range handles {
		vals[i] = hash.scalars.Get(sh)
	}
	return keys, vals
}
