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

	"github.com/expr-lang/expr"

	"github.com/gatemini/gatemini/internal/registry"
)

func TestBuildPreamble_InvokesClosureThroughCallTool(t *testing.T) {
	tools := []registry.ToolDescriptor{
		{Name: "search_docs", Backend: "docs", Description: "Search documentation"},
	}

	var gotBackend, gotTool string
	callTool := func(ctx context.Context, backendName, toolName string, args map[string]interface{}) (interface{}, error) {
		gotBackend, gotTool = backendName, toolName
		return "hit", nil
	}

	env := buildPreamble(context.Background(), tools, callTool)

	program, err := expr.Compile(`docs.search_docs({"q": "test"})`, expr.Env(env))
	if err != nil {
		t.Fatalf("expr.Compile: %v", err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		t.Fatalf("expr.Run: %v", err)
	}
	if result != "hit" {
		t.Errorf("expr.Run() = %v, want %q", result, "hit")
	}
	if gotBackend != "docs" || gotTool != "search_docs" {
		t.Errorf("callTool invoked with backend=%q tool=%q", gotBackend, gotTool)
	}
}

func TestBuildPreamble_SanitizesIdentifiersNotCallArguments(t *testing.T) {
	tools := []registry.ToolDescriptor{
		{Name: "search-docs", Backend: "my-backend", Description: "Search"},
	}

	var gotBackend, gotTool string
	callTool := func(ctx context.Context, backendName, toolName string, args map[string]interface{}) (interface{}, error) {
		gotBackend, gotTool = backendName, toolName
		return nil, nil
	}

	env := buildPreamble(context.Background(), tools, callTool)
	program, err := expr.Compile(`my_backend.search_docs({})`, expr.Env(env))
	if err != nil {
		t.Fatalf("expr.Compile: %v", err)
	}
	if _, err := expr.Run(program, env); err != nil {
		t.Fatalf("expr.Run: %v", err)
	}

	if gotBackend != "my-backend" || gotTool != "search-docs" {
		t.Errorf("callTool invoked with unsanitized names backend=%q tool=%q, want the original hyphenated names", gotBackend, gotTool)
	}
}

func TestBuildPreamble_GetToolInterfaceLooksUpByFQNOrBareName(t *testing.T) {
	tools := []registry.ToolDescriptor{
		{Name: "search_docs", Backend: "docs", Description: "Search documentation"},
	}
	env := buildPreamble(context.Background(), tools, func(ctx context.Context, b, tl string, a map[string]interface{}) (interface{}, error) {
		return nil, nil
	})

	getter, ok := env["__getToolInterface"].(func(string) interface{})
	if !ok {
		t.Fatal("__getToolInterface is not wired as a func(string) interface{}")
	}
	if got := getter("docs.search_docs"); got == nil {
		t.Error("__getToolInterface(\"docs.search_docs\") = nil, want a toolInterface")
	}
	if got := getter("search_docs"); got == nil {
		t.Error("__getToolInterface(\"search_docs\") = nil, want a toolInterface")
	}
	if got := getter("nonexistent"); got != nil {
		t.Errorf("__getToolInterface(\"nonexistent\") = %v, want nil", got)
	}
}
