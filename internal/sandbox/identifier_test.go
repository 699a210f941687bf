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

package sandbox

import "testing"

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already valid", "search_docs", "search_docs"},
		{"dashes become underscores", "my-backend", "my_backend"},
		{"dotted name", "backend.tool", "backend_tool"},
		{"leading digit prefixed", "9lives", "_9lives"},
		{"empty string", "", "_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeIdentifier(tt.in); got != tt.want {
				t.Errorf("sanitizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
