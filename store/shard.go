// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// heapNode is one entry of a shard's expiry min-heap: the deadline a key
// was given, together with the generation in effect when it was pushed.
// A node is live iff the shard's current entry for key still carries that
// exact deadline and generation; anything else is stale and is discarded
// the moment it is popped.
type heapNode struct {
	deadline   time.Time
	key        string
	generation uint64
}

type expiryHeap []heapNode

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)         { *h = append(*h, x.(heapNode)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	*h = old[:n-1]
	return node
}

// shard is one partition of the key space: a map guarded by its own
// mutex, plus an auxiliary min-heap of pending expirations. No shard
// operation ever holds another shard's guard, so cross-shard deadlock is
// impossible by construction.
type shard struct {
	mu      sync.Mutex
	entries map[string]entry
	expiry  expiryHeap

	evictions atomic.Uint64
}

func newShard(capacityHint int) *shard {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &shard{entries: make(map[string]entry, capacityHint)}
}

// set first runs the lazy eviction pass, then inserts or overwrites key,
// bumping its generation, so that SET remains the only growth path for the
// expiry heap.
func (s *shard) set(key string, value []byte, ttl time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(now)

	gen := s.entries[key].generation + 1
	e := entry{value: value, generation: gen}
	if ttl > 0 {
		e.deadline = now.Add(ttl)
		heap.Push(&s.expiry, heapNode{deadline: e.deadline, key: key, generation: gen})
	}
	s.entries[key] = e
}

// get looks up key. A present-but-expired entry is removed on the spot
// (opportunistic expiration, permitted though not required by the store's
// contract) and reported as absent; the heap is left untouched, since the
// surviving node will simply be discarded as stale when it is popped.
func (s *shard) get(key string, now time.Time) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		delete(s.entries, key)
		s.evictions.Add(1)
		return nil, false
	}
	return e.value, true
}

// del removes key if present and reports how many keys were removed (0 or
// 1). The heap is not touched; any surviving node for key is stale and
// will be discarded when popped.
func (s *shard) del(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return 0
	}
	delete(s.entries, key)
	return 1
}

// evictExpiredLocked pops and discards every heap node whose deadline has
// passed, removing the corresponding map entry only when the node is
// still live. It stops as soon as the minimum is in the future, so its
// cost is bounded by the number of expirations since the last SET on this
// shard, not by the shard's total size. Callers must hold s.mu.
func (s *shard) evictExpiredLocked(now time.Time) {
	for s.expiry.Len() > 0 {
		if s.expiry[0].deadline.After(now) {
			return
		}
		top := heap.Pop(&s.expiry).(heapNode)

		e, ok := s.entries[top.key]
		if !ok || !e.hasDeadline() || !e.deadline.Equal(top.deadline) || e.generation != top.generation {
			continue // stale node: map entry moved on, discard silently
		}
		delete(s.entries, top.key)
		s.evictions.Add(1)
	}
}

// len reports the number of keys physically present in the shard,
// including any not-yet-swept expired entries.
func (s *shard) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *shard) evictionCount() uint64 {
	return s.evictions.Load()
}
