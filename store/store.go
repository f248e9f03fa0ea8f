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
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultShardCount is used when a Store is built with a non-positive
// shard count.
const DefaultShardCount = 8

// Store is a fixed array of shards. A key is routed to exactly one shard
// for its entire lifetime: shard_index(k) = hash(k) mod N, where hash is
// xxhash's 64-bit mixer — deterministic, platform-stable, and
// independent of key length or prefix, exactly as required.
type Store struct {
	shards []*shard
}

// New creates a Store with shardCount shards (DefaultShardCount if
// shardCount <= 0), each shard's map pre-sized to roughly
// capacityHint/shardCount buckets. capacityHint is a hint, not a hard
// cap: there is no admission control, and growth is bounded only by
// available memory.
func New(shardCount, capacityHint int) *Store {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	perShard := 0
	if capacityHint > 0 {
		perShard = capacityHint / shardCount
	}

	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = newShard(perShard)
	}
	return &Store{shards: shards}
}

// ShardCount returns the number of shards this Store was built with.
func (st *Store) ShardCount() int {
	return len(st.shards)
}

// ShardIndex returns the shard key routes to, for callers (tests, metrics)
// that need to reason about the sharding invariant directly.
func (st *Store) ShardIndex(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(st.shards)))
}

func (st *Store) shardFor(key string) *shard {
	return st.shards[st.ShardIndex(key)]
}

// Set inserts or overwrites key with value. A ttl <= 0 means the entry
// never expires. Set is the only growth path for the shard's expiry heap
// and is where lazy eviction of already-expired entries happens.
func (st *Store) Set(key string, value []byte, ttl time.Duration) {
	st.shardFor(key).set(key, value, ttl, time.Now())
}

// Get returns the value stored for key and whether it was found. A key
// whose ttl has elapsed is reported not found, whether or not a later
// sweep has physically reclaimed it yet.
func (st *Store) Get(key string) ([]byte, bool) {
	return st.shardFor(key).get(key, time.Now())
}

// Del removes the given keys and returns how many were actually present.
func (st *Store) Del(keys ...string) int {
	var removed int
	for _, key := range keys {
		removed += st.shardFor(key).del(key)
	}
	return removed
}

// ShardStats summarizes one shard for the metrics package.
type ShardStats struct {
	Index     int
	Keys      int
	Evictions uint64
}

// Stats returns a per-shard snapshot used to populate the
// respcache_store_keys and respcache_store_evictions_total gauges.
func (st *Store) Stats() []ShardStats {
	stats := make([]ShardStats, len(st.shards))
	for i, s := range st.shards {
		stats[i] = ShardStats{Index: i, Keys: s.len(), Evictions: s.evictionCount()}
	}
	return stats
}
