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

package registry

import (
	"fmt"
	"sort"
	"sync"
)

// MutationFunc is called after every registry mutation (upsert or
// remove), outside the registry's own lock, so subscribers can debounce
// cache writes or fire list_changed notifications.
type MutationFunc func()

// Registry is the store of tool descriptors backing search-based
// discovery: a BM25 index with a 2x name-token boost, an optional
// semantic cosine index, and reciprocal-rank fusion across the two.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	docFreq  map[string]int
	totalLen int

	embedder Embedder

	onMutate []MutationFunc
}

// NewRegistry creates an empty registry. embedder may be nil, in which
// case Search falls back to BM25 alone.
func NewRegistry(embedder Embedder) *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		docFreq:  make(map[string]int),
		embedder: embedder,
	}
}

// OnMutate registers a callback invoked after every upsert/remove.
func (r *Registry) OnMutate(fn MutationFunc) {
	r.mu.Lock()
	r.onMutate = append(r.onMutate, fn)
	r.mu.Unlock()
}

func (r *Registry) notifyMutated() {
	r.mu.RLock()
	fns := append([]MutationFunc(nil), r.onMutate...)
	r.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// UpsertBackendTools replaces a backend's entire tool set. A tool is
// only ever registered under one backend at a time: calling this again
// for the same backend name fully supersedes its previous entries.
func (r *Registry) UpsertBackendTools(backend string, tools []ToolDescriptor) {
	r.mu.Lock()
	r.removeBackendLocked(backend)
	for _, t := range tools {
		t.Backend = backend
		r.addLocked(t)
	}
	r.mu.Unlock()
	r.notifyMutated()
}

// RemoveBackend deletes every tool registered under backend.
func (r *Registry) RemoveBackend(backend string) {
	r.mu.Lock()
	r.removeBackendLocked(backend)
	r.mu.Unlock()
	r.notifyMutated()
}

func (r *Registry) addLocked(t ToolDescriptor) {
	tokens := documentTokens(t)
	e := &entry{tool: t, tokens: tokens, termFreq: termFrequency(tokens)}

	if r.embedder != nil {
		if vec, err := r.embedder.Embed(t.Name + " " + t.Description); err == nil {
			normalize(vec)
			e.embedding = vec
		}
	}

	for term := range e.termFreq {
		r.docFreq[term]++
	}
	r.totalLen += len(tokens)
	r.entries[t.FQN()] = e
}

func (r *Registry) removeBackendLocked(backend string) {
	for fqn, e := range r.entries {
		if e.tool.Backend != backend {
			continue
		}
		for term := range e.termFreq {
			r.docFreq[term]--
			if r.docFreq[term] <= 0 {
				delete(r.docFreq, term)
			}
		}
		r.totalLen -= len(e.tokens)
		delete(r.entries, fqn)
	}
}

// Get returns the tool registered under fqn ("backend.tool").
func (r *Registry) Get(fqn string) (ToolDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[fqn]
	if !ok {
		return ToolDescriptor{}, false
	}
	e.usageCount++
	return e.tool, true
}

// Search returns up to limit tools ranked by relevance to query. When a
// semantic embedder is configured, BM25 and semantic candidate lists are
// fused with reciprocal rank fusion; otherwise BM25 alone ranks results.
func (r *Registry) Search(query string, limit int) ([]ToolDescriptor, error) {
	if limit <= 0 {
		limit = 10
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	fetchLimit := limit
	if fetchLimit < minCandidates {
		fetchLimit = minCandidates
	}

	queryTokens := tokenize(query)
	bm25Results := r.bm25Search(queryTokens, fetchLimit)

	var fused []scored
	if r.embedder != nil {
		queryEmbedding, err := r.embedder.Embed(query)
		if err == nil {
			normalize(queryEmbedding)
			semanticResults := r.semanticSearch(queryEmbedding, fetchLimit)
			fused = fuseRankings(bm25Results, semanticResults)
		}
	}
	if fused == nil {
		fused = bm25Results
	}

	if len(fused) > limit {
		fused = fused[:limit]
	}

	out := make([]ToolDescriptor, 0, len(fused))
	for _, s := range fused {
		if e, ok := r.entries[s.fqn]; ok {
			out = append(out, e.tool)
		}
	}
	return out, nil
}

// ListNames returns tool names ordered by usage count descending then
// name ascending, paginated by an opaque cursor (the name of the first
// item on the next page; empty string at the end).
func (r *Registry) ListNames(cursor string, pageSize int) (names []string, nextCursor string) {
	if pageSize <= 0 {
		pageSize = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type ranked struct {
		fqn   string
		usage int
	}
	all := make([]ranked, 0, len(r.entries))
	for fqn, e := range r.entries {
		all = append(all, ranked{fqn: fqn, usage: e.usageCount})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].usage != all[j].usage {
			return all[i].usage > all[j].usage
		}
		return all[i].fqn < all[j].fqn
	})

	start := 0
	if cursor != "" {
		for i, item := range all {
			if item.fqn == cursor {
				start = i
				break
			}
		}
	}
	if start >= len(all) {
		return nil, ""
	}

	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	names = make([]string, 0, end-start)
	for _, item := range all[start:end] {
		names = append(names, item.fqn)
	}
	if end < len(all) {
		nextCursor = all[end].fqn
	}
	return names, nextCursor
}

// Len returns the total number of indexed tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns every indexed tool, for cache writes and the
// all-tools-index resource.
func (r *Registry) Snapshot() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQN() < out[j].FQN() })
	return out
}

// ErrNotFound is returned by Get-like lookups that miss.
var ErrNotFound = fmt.Errorf("tool not found")
