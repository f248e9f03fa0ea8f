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

// Package store implements the sharded, lazily-expiring key-value store:
// one fixed array of shards, each owning its own map, expiry min-heap, and
// mutex, so that no two shards ever compete for a lock.
package store

import "time"

// entry is one stored value. A zero deadline means the entry never
// expires. generation is bumped on every write to the same key and lets a
// stale heap node (left behind by an overwrite or delete) be recognized
// and discarded without ever touching the heap eagerly.
type entry struct {
	value      []byte
	deadline   time.Time
	generation uint64
}

func (e entry) hasDeadline() bool {
	return !e.deadline.IsZero()
}

// expired reports whether e is logically absent at now. A logically
// absent entry may still physically occupy the shard map until the next
// lazy sweep or opportunistic GET touches it.
func (e entry) expired(now time.Time) bool {
	return e.hasDeadline() && !now.Before(e.deadline)
}
