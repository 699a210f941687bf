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

import "sort"

// rrfK is the reciprocal-rank-fusion rank-damping constant.
const rrfK = 60

// minCandidates is the minimum number of results requested from each
// retriever before fusing, regardless of the caller's final limit.
const minCandidates = 30

type scored struct {
	fqn   string
	name  string
	score float64
}

func sortScored(s []scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].name < s[j].name
	})
}

// fuseRankings combines two ranked candidate lists with reciprocal rank
// fusion: each retriever contributes 1/(K+rank) (rank is 1-based) to a
// tool's fused score, summed across retrievers.
func fuseRankings(lists ...[]scored) []scored {
	fused := make(map[string]float64)
	names := make(map[string]string)

	for _, list := range lists {
		for i, s := range list {
			rank := i + 1
			fused[s.fqn] += 1.0 / float64(rrfK+rank)
			names[s.fqn] = s.name
		}
	}

	out := make([]scored, 0, len(fused))
	for fqn, score := range fused {
		out = append(out, scored{fqn: fqn, name: names[fqn], score: score})
	}
	sortScored(out)
	return out
}
