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

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Search scores every entry against the tokenized query and returns
// fully-qualified names ranked by descending score, ties broken by tool
// name ascending, truncated to limit.
func (r *Registry) bm25Search(queryTokens []string, limit int) []scored {
	if len(r.entries) == 0 || len(queryTokens) == 0 {
		return nil
	}

	n := float64(len(r.entries))
	avgLen := float64(r.totalLen) / n

	idf := make(map[string]float64, len(queryTokens))
	for _, term := range dedupe(queryTokens) {
		df := float64(r.docFreq[term])
		idf[term] = math.Log((n-df+0.5)/(df+0.5) + 1)
	}

	results := make([]scored, 0, len(r.entries))
	for fqn, e := range r.entries {
		var score float64
		docLen := float64(len(e.tokens))
		for term, termIDF := range idf {
			tf := float64(e.termFreq[term])
			if tf == 0 {
				continue
			}
			norm := bm25K1 * (1 - bm25B + bm25B*docLen/avgLen)
			score += termIDF * (tf * (bm25K1 + 1)) / (tf + norm)
		}
		if score > 0 {
			results = append(results, scored{fqn: fqn, name: e.tool.Name, score: score})
		}
	}

	sortScored(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
