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

type searchToolsBriefItem struct {
	Name    string `json:"name"`
	Backend string `json:"backend"`
	Brief   string `json:"description"`
}

type searchToolsFullItem struct {
	Name        string `json:"name"`
	Backend     string `json:"backend"`
	Description string `json:"description"`
}

// handleSearchTools implements search_tools.
func (s *Server) handleSearchTools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("rate limit exceeded, please try again shortly"), nil
	}

	task, err := request.RequireString("task_description")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	limit := int(request.GetFloat("limit", 10))
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	brief := request.GetBool("brief", true)

	results, err := s.registry.Search(task, limit)
	if err != nil {
		return errorResponse(fmt.Sprintf("search failed: %v", err)), nil
	}

	var payload interface{}
	if brief {
		items := make([]searchToolsBriefItem, 0, len(results))
		for _, t := range results {
			items = append(items, searchToolsBriefItem{Name: t.Name, Backend: t.Backend, Brief: toolBrief(t.Description)})
		}
		payload = items
	} else {
		items := make([]searchToolsFullItem, 0, len(results))
		for _, t := range results {
			items = append(items, searchToolsFullItem{Name: t.Name, Backend: t.Backend, Description: t.Description})
		}
		payload = items
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("failed to encode results: %v", err)), nil
	}
	return textResponse(string(data)), nil
}
