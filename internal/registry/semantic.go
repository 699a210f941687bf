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

import "math"

// Embedder turns text into a fixed-dimension embedding vector. No Go
// static-embedding library exists among gatemini's dependencies, so
// this stays a pluggable interface: semantic search degrades cleanly to
// BM25-only when no Embedder is configured, rather than gatemini
// fabricating a model dependency that doesn't exist.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// normalize scales v to unit L2 norm in place so a dot product equals
// cosine similarity. A zero vector is left unchanged.
func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// semanticSearch brute-force scores every embedded entry by dot product
// against the query embedding. Budgeted for up to ~10,000 tools; beyond
// that an approximate index would be needed, per spec.
func (r *Registry) semanticSearch(queryEmbedding []float32, limit int) []scored {
	if queryEmbedding == nil {
		return nil
	}

	results := make([]scored, 0, len(r.entries))
	for fqn, e := range r.entries {
		if e.embedding == nil {
			continue
		}
		results = append(results, scored{fqn: fqn, name: e.tool.Name, score: dot(queryEmbedding, e.embedding)})
	}

	sortScored(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
