// Package hashtable implements a lock-striped hash table, grounded on the
// teacher's hashtable package. ext2 uses one instance per mount as its
// inode cache (spec.md §3 "ext2 in-memory state" implies a cache; spec.md
// §4.10 path resolution walks inodes by number repeatedly, so caching them
// keyed by inode number avoids re-reading the inode table block on every
// lookup).
package hashtable

import (
	"hash/fnv"
	"sync"
)

type elem_t struct {
	key   uint64
	value interface{}
	next  *elem_t
}

type bucket_t struct {
	sync.RWMutex
	first *elem_t
}

// Hashtable_t is a fixed-bucket-count, lock-striped map from uint64 keys
// (inode numbers, in ext2's case) to arbitrary cached values.
type Hashtable_t struct {
	buckets []bucket_t
}

// Mk constructs a hash table with nbuckets buckets.
func Mk(nbuckets int) *Hashtable_t {
	if nbuckets <= 0 {
		nbuckets = 64
	}
	return &Hashtable_t{buckets: make([]bucket_t, nbuckets)}
}

func (h *Hashtable_t) bucketFor(key uint64) *bucket_t {
	hh := fnv.New64a()
	var kb [8]uint8
	for i := 0; i < 8; i++ {
		kb[i] = uint8(key >> (8 * i))
	}
	hh.Write(kb[:])
	idx := hh.Sum64() % uint64(len(h.buckets))
	return &h.buckets[idx]
}

// Get retrieves the value stored at key, if any.
func (h *Hashtable_t) Get(key uint64) (interface{}, bool) {
	b := h.bucketFor(key)
	b.RLock()
	defer b.RUnlock()
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Set inserts or overwrites the value stored at key.
func (h *Hashtable_t) Set(key uint64, val interface{}) {
	b := h.bucketFor(key)
	b.Lock()
	defer b.Unlock()
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			e.value = val
			return
		}
	}
	b.first = &elem_t{key: key, value: val, next: b.first}
}

// Del removes the entry at key, if present.
func (h *Hashtable_t) Del(key uint64) {
	b := h.bucketFor(key)
	b.Lock()
	defer b.Unlock()
	var prev *elem_t
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			if prev == nil {
				b.first = e.next
			} else {
				prev.next = e.next
			}
			return
		}
		prev = e
	}
}

// Len returns the total number of entries across all buckets. O(n).
func (h *Hashtable_t) Len() int {
	n := 0
	for i := range h.buckets {
		b := &h.buckets[i]
		b.RLock()
		for e := b.first; e != nil; e = e.next {
			n++
		}
		b.RUnlock()
	}
	return n
}
