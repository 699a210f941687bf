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

// handleGetRequiredKeysForTool implements get_required_keys_for_tool.
func (s *Server) handleGetRequiredKeysForTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("rate limit exceeded, please try again shortly"), nil
	}

	fqn, err := request.RequireString("tool_name")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	tool, ok := s.registry.Get(fqn)
	if !ok {
		return errorResponse(fmt.Sprintf("tool not found: %s", fqn)), nil
	}

	keys, err := s.engine.RequiredKeys(tool.Backend)
	if err != nil {
		return errorResponse(fmt.Sprintf("backend %s: %v", tool.Backend, err)), nil
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return textResponse(string(data)), nil
}
