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

// Package registry indexes backend tools for search-based discovery: a
// BM25 full-text index with a 2x name-token boost, an optional semantic
// cosine index, and reciprocal-rank fusion across the two.
package registry

import "encoding/json"

// ToolDescriptor is one tool exposed by a backend.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Backend     string          `json:"backend"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
	Annotations map[string]any  `json:"annotations,omitempty"`
}

// FQN is the registry's global tool identifier: "backend.tool".
func (t ToolDescriptor) FQN() string {
	return t.Backend + "." + t.Name
}

// entry is a ToolDescriptor plus its precomputed search representations.
type entry struct {
	tool ToolDescriptor

	// tokens is the tokenized document used by BM25: name tokens
	// appear twice (2x name boost), then description tokens.
	tokens []string

	// termFreq counts occurrences of each token in tokens.
	termFreq map[string]int

	// embedding is the unit-L2-normalized "name description" vector,
	// nil when semantic search is disabled or this tool predates it.
	embedding []float32

	// usageCount drives list_tools_meta's usage-then-name ordering.
	usageCount int
}
