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

package metatool

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/registry"
)

func TestCreateLogger_ValidLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := createLogger(tt.level)
			if err != nil {
				t.Fatalf("createLogger(%q) returned error: %v", tt.level, err)
			}
			if logger == nil {
				t.Fatal("createLogger returned nil logger")
			}
			if !logger.Enabled(context.Background(), tt.expected) {
				t.Errorf("logger not enabled for level %v", tt.expected)
			}
		})
	}
}

func TestCreateLogger_InvalidLevel(t *testing.T) {
	if _, err := createLogger("invalid"); err == nil {
		t.Error("createLogger(\"invalid\") should return an error")
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	r := registry.NewRegistry(nil)
	r.UpsertBackendTools("docs", []registry.ToolDescriptor{
		{Name: "search_docs", Description: "Search internal documentation. Returns matching snippets."},
	})

	e := backend.NewEngine(backend.EngineConfig{MaxDynamicBackends: 4})
	if err := e.AddBackend(backend.ServerConfig{Name: "docs", URL: "http://127.0.0.1:0/mcp"}, backend.HealthPolicy{}, false); err != nil {
		t.Fatalf("AddBackend: %v", err)
	}

	s, err := NewServer(ServerConfig{Name: "test", Version: "0.0.0"}, Deps{Registry: r, Engine: e})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return s
}

func callToolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestNewServer_RequiresDeps(t *testing.T) {
	if _, err := NewServer(ServerConfig{}, Deps{}); err == nil {
		t.Error("NewServer with no Registry/Engine should return an error")
	}
}

func TestHandleSearchTools_ReturnsBriefMatch(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleSearchTools(context.Background(), callToolRequest(map[string]interface{}{
		"task_description": "search documentation",
	}))
	if err != nil {
		t.Fatalf("handleSearchTools: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleSearchTools returned an error result: %+v", result.Content)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "search_docs") {
		t.Errorf("expected search_docs in result, got: %s", text)
	}
	if !strings.Contains(text, "description") {
		t.Errorf("expected brief shape (description field), got: %s", text)
	}
}

func TestHandleGetRequiredKeysForTool_UnknownTool(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleGetRequiredKeysForTool(context.Background(), callToolRequest(map[string]interface{}{
		"tool_name": "docs.nonexistent",
	}))
	if err != nil {
		t.Fatalf("handleGetRequiredKeysForTool: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result for an unknown tool")
	}
}

func TestHandleRegisterAndDeregisterManual(t *testing.T) {
	s := newTestServer(t)

	regResult, err := s.handleRegisterManual(context.Background(), callToolRequest(map[string]interface{}{
		"name": "scratch",
		"url":  "http://127.0.0.1:0/mcp",
	}))
	if err != nil {
		t.Fatalf("handleRegisterManual: %v", err)
	}
	if regResult.IsError {
		t.Fatalf("handleRegisterManual returned an error: %s", resultText(t, regResult))
	}

	// Deregistering a static (non-dynamic) backend should be protected.
	deregStatic, err := s.handleDeregisterManual(context.Background(), callToolRequest(map[string]interface{}{
		"name": "docs",
	}))
	if err != nil {
		t.Fatalf("handleDeregisterManual: %v", err)
	}
	if resultText(t, deregStatic) != "protected" {
		t.Errorf("deregistering a static backend = %q, want %q", resultText(t, deregStatic), "protected")
	}

	deregDynamic, err := s.handleDeregisterManual(context.Background(), callToolRequest(map[string]interface{}{
		"name": "scratch",
	}))
	if err != nil {
		t.Fatalf("handleDeregisterManual: %v", err)
	}
	if strings.Contains(resultText(t, deregDynamic), "protected") {
		t.Errorf("deregistering a dynamic backend should succeed, got %q", resultText(t, deregDynamic))
	}
}

type fakeDispatcher struct {
	output string
	err    error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, code string) (string, error) {
	return f.output, f.err
}

func TestHandleCallToolChain_NoDispatcherConfigured(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleCallToolChain(context.Background(), callToolRequest(map[string]interface{}{
		"code": `{"tool":"docs.search_docs","arguments":{}}`,
	}))
	if err != nil {
		t.Fatalf("handleCallToolChain: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result when no dispatcher is configured")
	}
}

func TestHandleCallToolChain_DelegatesToDispatcher(t *testing.T) {
	s := newTestServer(t)
	s.dispatcher = &fakeDispatcher{output: "42"}

	result, err := s.handleCallToolChain(context.Background(), callToolRequest(map[string]interface{}{
		"code": `{"tool":"docs.search_docs","arguments":{}}`,
	}))
	if err != nil {
		t.Fatalf("handleCallToolChain: %v", err)
	}
	if resultText(t, result) != "42" {
		t.Errorf("handleCallToolChain result = %q, want %q", resultText(t, result), "42")
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("result content[0] is not TextContent: %T", result.Content[0])
	}
	return tc.Text
}
