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

type listToolsMetaResult struct {
	Tools      []string `json:"tools"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// handleListToolsMeta implements list_tools_meta.
func (s *Server) handleListToolsMeta(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("rate limit exceeded, please try again shortly"), nil
	}

	cursor := request.GetString("cursor", "")
	pageSize := int(request.GetFloat("page_size", 50))
	if pageSize <= 0 {
		pageSize = 50
	}

	names, next := s.registry.ListNames(cursor, pageSize)
	result := listToolsMetaResult{Tools: names, NextCursor: next}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("failed to encode results: %v", err)), nil
	}
	return textResponse(string(data)), nil
}
