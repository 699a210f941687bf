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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/registry"
)

// registerResources registers gatemini's URI-addressable, read-only
// resources: a human overview, a backend list with status, a compact
// all-tools index, and per-tool/per-backend detail templates.
func (s *Server) registerResources() error {
	s.mcpServer.AddResource(
		mcp.NewResource("gatemini://overview", "Overview",
			mcp.WithResourceDescription("Human-readable summary of gatemini's discovery workflow and connected backends"),
			mcp.WithMIMEType("text/plain"),
		),
		s.handleOverviewResource,
	)

	s.mcpServer.AddResource(
		mcp.NewResource("gatemini://backends", "Backends",
			mcp.WithResourceDescription("Every connected backend with its current health state"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleBackendsResource,
	)

	s.mcpServer.AddResource(
		mcp.NewResource("gatemini://tools", "Tools index",
			mcp.WithResourceDescription("Compact index of every known tool: name, backend, and a one-line description"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleToolsIndexResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate("gatemini://tools/{fqn}", "Tool schema",
			mcp.WithTemplateDescription("Full description and input schema for one tool, addressed by backend.tool"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleToolSchemaResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate("gatemini://backends/{name}", "Backend detail",
			mcp.WithTemplateDescription("One backend's configuration-visible state and health"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleBackendDetailResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate("gatemini://backends/{name}/tools", "Backend tool list",
			mcp.WithTemplateDescription("Every tool one backend currently exposes"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleBackendToolsResource,
	)

	return nil
}

func textContents(uri, mimeType, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: mimeType, Text: text},
	}
}

func (s *Server) handleOverviewResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	backends := s.engine.BackendNames()
	var b strings.Builder
	fmt.Fprintf(&b, "gatemini is supervising %d backend(s).\n\n", len(backends))
	b.WriteString(discoveryGuidance)
	b.WriteString("\n")
	return textContents(request.Params.URI, "text/plain", b.String()), nil
}

func (s *Server) handleBackendsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	statuses := s.engine.ListStatus()
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backend list: %w", err)
	}
	return textContents(request.Params.URI, "application/json", string(data)), nil
}

func (s *Server) handleToolsIndexResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	tools := s.registry.Snapshot()
	items := make([]searchToolsBriefItem, 0, len(tools))
	for _, t := range tools {
		items = append(items, searchToolsBriefItem{Name: t.Name, Backend: t.Backend, Brief: resourceBrief(t.Description)})
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tools index: %w", err)
	}
	return textContents(request.Params.URI, "application/json", string(data)), nil
}

func (s *Server) handleToolSchemaResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	fqn := strings.TrimPrefix(request.Params.URI, "gatemini://tools/")
	tool, ok := s.registry.Get(fqn)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", fqn)
	}
	data, err := json.MarshalIndent(toolInfoFull{
		Name: tool.Name, Backend: tool.Backend, Description: tool.Description, InputSchema: tool.InputSchema,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool schema: %w", err)
	}
	return textContents(request.Params.URI, "application/json", string(data)), nil
}

func (s *Server) handleBackendDetailResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	name := strings.TrimPrefix(request.Params.URI, "gatemini://backends/")
	status, err := s.engine.GetStatus(name)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backend detail: %w", err)
	}
	return textContents(request.Params.URI, "application/json", string(data)), nil
}

func (s *Server) handleBackendToolsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(request.Params.URI, "gatemini://backends/"), "/tools")

	var matched []searchToolsBriefItem
	for _, t := range s.registry.Snapshot() {
		if t.Backend != name {
			continue
		}
		matched = append(matched, searchToolsBriefItem{Name: t.Name, Backend: t.Backend, Brief: resourceBrief(t.Description)})
	}

	data, err := json.MarshalIndent(matched, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backend tool list: %w", err)
	}
	return textContents(request.Params.URI, "application/json", string(data)), nil
}

// completeToolNames returns every tool's fully-qualified name starting
// with prefix, for resource-completion support.
func completeToolNames(reg *registry.Registry, prefix string) []string {
	var out []string
	for _, t := range reg.Snapshot() {
		if strings.HasPrefix(t.FQN(), prefix) {
			out = append(out, t.FQN())
		}
	}
	return out
}

// completeBackendNames returns every backend name starting with prefix,
// for resource-completion support.
func completeBackendNames(engine *backend.Engine, prefix string) []string {
	var out []string
	for _, name := range engine.BackendNames() {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// newCompletionHandler returns the mcp-go completion/complete handler
// backing the gatemini://tools/{fqn} and gatemini://backends/{name}
// resource templates: it inspects the reference URI's prefix to decide
// which of the two name spaces to complete against.
func newCompletionHandler(reg *registry.Registry, engine *backend.Engine) server.CompletionHandlerFunc {
	return func(ctx context.Context, request mcp.CompleteRequest) (*mcp.CompleteResult, error) {
		if request.Params.Ref.Type != "ref/resource" {
			return completionResult(nil), nil
		}

		uri := request.Params.Ref.URI
		prefix := request.Params.Argument.Value

		switch {
		case strings.HasPrefix(uri, "gatemini://tools/"):
			return completionResult(completeToolNames(reg, prefix)), nil
		case strings.HasPrefix(uri, "gatemini://backends/"):
			return completionResult(completeBackendNames(engine, prefix)), nil
		default:
			return completionResult(nil), nil
		}
	}
}

func completionResult(values []string) *mcp.CompleteResult {
	result := &mcp.CompleteResult{}
	result.Completion.Values = values
	result.Completion.Total = len(values)
	return result
}
