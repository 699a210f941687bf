// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"hash/maphash"
	"sync"
)

const peerShardCount = 16

// shardedPeerMap is a 16-way sharded map of backend name to peerState.
// A single global mutex is a measurable bottleneck once dozens of
// backends are pinging and calling tools concurrently; sharding by name
// hash keeps lock contention local to the shard a given backend lives
// in.
type shardedPeerMap struct {
	seed   maphash.Seed
	shards [peerShardCount]*peerShard
}

type peerShard struct {
	mu    sync.RWMutex
	items map[string]*peerState
}

func newShardedPeerMap() *shardedPeerMap {
	m := &shardedPeerMap{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i] = &peerShard{items: make(map[string]*peerState)}
	}
	return m
}

func (m *shardedPeerMap) shardFor(name string) *peerShard {
	var h maphash.Hash
	h.SetSeed(m.seed)
	h.WriteString(name)
	return m.shards[h.Sum64()%uint64(peerShardCount)]
}

func (m *shardedPeerMap) Get(name string) (*peerState, bool) {
	s := m.shardFor(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.items[name]
	return st, ok
}

func (m *shardedPeerMap) Set(name string, st *peerState) {
	s := m.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[name] = st
}

func (m *shardedPeerMap) Delete(name string) {
	s := m.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, name)
}

func (m *shardedPeerMap) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Names returns a snapshot of every backend name currently in the map.
func (m *shardedPeerMap) Names() []string {
	var names []string
	for _, s := range m.shards {
		s.mu.RLock()
		for name := range s.items {
			names = append(names, name)
		}
		s.mu.RUnlock()
	}
	return names
}
