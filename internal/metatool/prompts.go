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
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerPrompts registers gatemini's three prompts.
func (s *Server) registerPrompts() error {
	s.mcpServer.AddPrompt(
		mcp.NewPrompt("discover",
			mcp.WithPromptDescription("Scripted four-step guidance for discovering and calling gatemini's backend tools"),
		),
		s.handleDiscoverPrompt,
	)

	s.mcpServer.AddPrompt(
		mcp.NewPrompt("find_tool",
			mcp.WithPromptDescription("Search for a tool matching a task and show the top match's full schema"),
			mcp.WithArgument("task",
				mcp.ArgumentDescription("Natural-language description of the task"),
			),
		),
		s.handleFindToolPrompt,
	)

	s.mcpServer.AddPrompt(
		mcp.NewPrompt("backend_status",
			mcp.WithPromptDescription("Render a health table of every connected backend"),
		),
		s.handleBackendStatusPrompt,
	)

	return nil
}

func (s *Server) handleDiscoverPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "gatemini discovery workflow",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: discoveryGuidance},
			},
		},
	}, nil
}

func (s *Server) handleFindToolPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	task := request.Params.Arguments["task"]
	if task == "" {
		return nil, fmt.Errorf("find_tool requires a task argument")
	}

	results, err := s.registry.Search(task, 1)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return &mcp.GetPromptResult{
			Description: fmt.Sprintf("No tool found for: %s", task),
			Messages: []mcp.PromptMessage{
				{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: "No matching tool was found. Try rephrasing the task, or call search_tools directly with a broader description."}},
			},
		}, nil
	}

	top := results[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Best match for %q: %s (backend %s)\n\n", task, top.Name, top.Backend)
	fmt.Fprintf(&b, "Description: %s\n\n", top.Description)
	fmt.Fprintf(&b, "Parameters: %v\n", parameterNames(top.InputSchema))

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Top match for: %s", task),
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: b.String()}},
		},
	}, nil
}

func (s *Server) handleBackendStatusPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	statuses := s.engine.ListStatus()

	var b strings.Builder
	b.WriteString("backend          state       in_flight  failures  dynamic\n")
	for _, st := range statuses {
		fmt.Fprintf(&b, "%-16s %-11s %-10d %-9d %v\n", st.Name, st.State, st.InFlight, st.FailureCount, st.Dynamic)
	}

	return &mcp.GetPromptResult{
		Description: "Backend health table",
		Messages: []mcp.PromptMessage{
			{Role: mcp.RoleUser, Content: mcp.TextContent{Type: "text", Text: b.String()}},
		},
	}, nil
}
