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

	"github.com/mark3labs/mcp-go/mcp"
)

type toolInfoBrief struct {
	Name       string   `json:"name"`
	Backend    string   `json:"backend"`
	Brief      string   `json:"description"`
	Parameters []string `json:"parameters"`
}

type toolInfoFull struct {
	Name        string          `json:"name"`
	Backend     string          `json:"backend"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// handleToolInfo implements tool_info.
func (s *Server) handleToolInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("rate limit exceeded, please try again shortly"), nil
	}

	fqn, err := request.RequireString("tool_name")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	detail := request.GetString("detail", "brief")

	tool, ok := s.registry.Get(fqn)
	if !ok {
		return errorResponse(fmt.Sprintf("tool not found: %s", fqn)), nil
	}

	var payload interface{}
	if detail == "full" {
		payload = toolInfoFull{Name: tool.Name, Backend: tool.Backend, Description: tool.Description, InputSchema: tool.InputSchema}
	} else {
		payload = toolInfoBrief{
			Name:       tool.Name,
			Backend:    tool.Backend,
			Brief:      toolBrief(tool.Description),
			Parameters: parameterNames(tool.InputSchema),
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return textResponse(string(data)), nil
}
