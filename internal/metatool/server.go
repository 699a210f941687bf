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

// Package metatool implements the seven fixed meta-tools, resources, and
// prompts gatemini exposes to every session. Individual backend tools are
// never exposed directly; agents discover and invoke them through this
// progressive-disclosure surface.
package metatool

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/registry"
)

// discoveryGuidance is served by the discover prompt and the
// gatemini://overview resource so agents learn the progressive-disclosure workflow
// without external documentation.
const discoveryGuidance = `gatemini exposes one discovery workflow:

1. search_tools(task_description) to find candidate tools by relevance.
2. tool_info(tool_name) for a specific tool's parameters before calling it.
3. call_tool_chain(code) to invoke one or more backend tools.
4. backend_status (prompt) or the backend-list resource to check health.`

// ChainDispatcher executes the code argument of call_tool_chain against
// the backend engine, choosing among the direct-JSON, regex, and
// JavaScript-sandbox tiers.
type ChainDispatcher interface {
	Dispatch(ctx context.Context, code string) (string, error)
}

// Deps are the collaborators a Server dispatches meta-tool calls to.
type Deps struct {
	Registry   *registry.Registry
	Engine     *backend.Engine
	Dispatcher ChainDispatcher
}

// Server wraps an MCP server exposing gatemini's meta-tool surface.
type Server struct {
	mcpServer   *server.MCPServer
	name        string
	version     string
	rateLimiter *RateLimiter
	logger      *slog.Logger

	registry   *registry.Registry
	engine     *backend.Engine
	dispatcher ChainDispatcher
}

// ServerConfig configures a meta-tool Server.
type ServerConfig struct {
	// Name is the server name (default: "gatemini")
	Name string

	// Version is gatemini's version
	Version string

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string
}

// createLogger creates a logger with the specified log level. Writes to
// stderr to avoid interfering with the MCP stdio protocol.
func createLogger(levelStr string) (*slog.Logger, error) {
	var level slog.Level

	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), nil
}

// NewServer creates a meta-tool Server wired to deps, registering all
// seven tools, resources, and prompts.
func NewServer(config ServerConfig, deps Deps) (*Server, error) {
	if config.Name == "" {
		config.Name = "gatemini"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if deps.Registry == nil || deps.Engine == nil {
		return nil, fmt.Errorf("metatool: Registry and Engine are required")
	}

	logger, err := createLogger(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	mcpServer := server.NewMCPServer(config.Name, config.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
		server.WithCompletionHandler(newCompletionHandler(deps.Registry, deps.Engine)),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer:   mcpServer,
		name:        config.Name,
		version:     config.Version,
		rateLimiter: NewRateLimiter(10, 100),
		logger:      logger,
		registry:    deps.Registry,
		engine:      deps.Engine,
		dispatcher:  deps.Dispatcher,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	if err := s.registerResources(); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}
	if err := s.registerPrompts(); err != nil {
		return nil, fmt.Errorf("failed to register prompts: %w", err)
	}

	return s, nil
}

// MCPServer returns the underlying mcp-go server, so a caller (such as
// the daemon's per-connection session) can serve it over its own
// transport instead of the stdio transport Run uses.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// registerTools registers gatemini's seven fixed meta-tools.
func (s *Server) registerTools() error {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "search_tools",
		Description: "Search across every connected backend's tools by relevance to a task description. Call this first to discover which tool to use.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"task_description": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language description of what you want to accomplish",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (default 10, max 50)",
				},
				"brief": map[string]interface{}{
					"type":        "boolean",
					"description": "Return only the first sentence of each description (default true)",
				},
			},
			Required: []string{"task_description"},
		},
	}, s.handleSearchTools)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tools_meta",
		Description: "List every known tool's fully-qualified name, ordered by usage then name, paginated by cursor.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cursor": map[string]interface{}{
					"type":        "string",
					"description": "Opaque pagination cursor from a prior call's next_cursor",
				},
				"page_size": map[string]interface{}{
					"type":        "integer",
					"description": "Results per page (default 50)",
				},
			},
		},
	}, s.handleListToolsMeta)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "tool_info",
		Description: "Look up one tool by its fully-qualified name (backend.tool). Use detail=\"full\" to get its complete input schema before calling it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"tool_name": map[string]interface{}{
					"type":        "string",
					"description": "Fully-qualified tool name, backend.tool",
				},
				"detail": map[string]interface{}{
					"type":        "string",
					"description": "\"brief\" (default) or \"full\"",
				},
			},
			Required: []string{"tool_name"},
		},
	}, s.handleToolInfo)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_required_keys_for_tool",
		Description: "Return the environment variable names declared for a tool's backend, without their values. Use this to check what secrets a backend needs before calling its tools.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"tool_name": map[string]interface{}{
					"type":        "string",
					"description": "Fully-qualified tool name, backend.tool",
				},
			},
			Required: []string{"tool_name"},
		},
	}, s.handleGetRequiredKeysForTool)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "call_tool_chain",
		Description: "Invoke one or more backend tools. Accepts a direct JSON call ({\"tool\":\"backend.tool\",\"arguments\":{...}}), a single expression like backend.tool({...}), or a short JavaScript snippet that calls several tools and combines their results.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "JSON call, single-call expression, or JavaScript snippet",
				},
			},
			Required: []string{"code"},
		},
	}, s.handleCallToolChain)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "register_manual",
		Description: "Register a new backend at runtime. Accepts the same fields as a static backend config entry: name, and either command/args/env or url/headers.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Unique backend name",
				},
				"command": map[string]interface{}{
					"type":        "string",
					"description": "Executable for a stdio backend",
				},
				"args": map[string]interface{}{
					"type":        "array",
					"description": "Command-line arguments",
					"items":       map[string]interface{}{"type": "string"},
				},
				"env": map[string]interface{}{
					"type":        "object",
					"description": "Environment variables as KEY=VALUE pairs",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Endpoint for a streamable HTTP backend",
				},
				"headers": map[string]interface{}{
					"type":        "object",
					"description": "HTTP headers to send with every request",
				},
				"timeout_seconds": map[string]interface{}{
					"type":        "integer",
					"description": "Per-call timeout in seconds (default 30)",
				},
			},
			Required: []string{"name"},
		},
	}, s.handleRegisterManual)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "deregister_manual",
		Description: "Remove a backend that was previously registered at runtime with register_manual. Backends declared in the static config file cannot be removed this way.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Backend name to remove",
				},
			},
			Required: []string{"name"},
		},
	}, s.handleDeregisterManual)

	return nil
}

// Run starts the meta-tool server using stdio transport, for direct
// single-session embedding rather than the daemon's multiplexed sessions.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting gatemini meta-tool server", "version", s.version)

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server. mcp-go's stdio transport has
// no explicit shutdown method; returning from ServeStdio is sufficient.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gatemini meta-tool server")
	return nil
}

func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// argumentsMap returns a tool call's arguments as a plain map, tolerating
// the nil-arguments case.
func argumentsMap(request mcp.CallToolRequest) map[string]interface{} {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}
