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

import "strings"

// tokenize splits on runs of non-alphanumeric characters and lowercases
// the result, dropping empty tokens.
func tokenize(s string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(toLower(r))
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// documentTokens builds the effective document for a tool: its name
// tokens counted twice, then its description tokens.
func documentTokens(t ToolDescriptor) []string {
	nameTokens := tokenize(t.Name)
	descTokens := tokenize(t.Description)

	tokens := make([]string, 0, 2*len(nameTokens)+len(descTokens))
	tokens = append(tokens, nameTokens...)
	tokens = append(tokens, nameTokens...)
	tokens = append(tokens, descTokens...)
	return tokens
}

func termFrequency(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}
