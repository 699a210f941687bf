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

import (
	"context"
	"testing"
)

func TestJqFilter_EmptyExpressionPassesThrough(t *testing.T) {
	value := map[string]interface{}{"a": 1.0}
	got, err := jqFilter(context.Background(), "", value)
	if err != nil {
		t.Fatalf("jqFilter() error: %v", err)
	}
	if m, ok := got.(map[string]interface{}); !ok || m["a"] != 1.0 {
		t.Errorf("jqFilter() = %v, want input unchanged", got)
	}
}

func TestJqFilter_ProjectsAField(t *testing.T) {
	value := map[string]interface{}{"name": "widget", "count": 3.0}
	got, err := jqFilter(context.Background(), ".name", value)
	if err != nil {
		t.Fatalf("jqFilter() error: %v", err)
	}
	if got != "widget" {
		t.Errorf("jqFilter(.name) = %v, want %q", got, "widget")
	}
}

func TestJqFilter_RejectsInvalidExpression(t *testing.T) {
	if _, err := jqFilter(context.Background(), "{{{", "x"); err == nil {
		t.Error("jqFilter() should reject an unparseable expression")
	}
}
