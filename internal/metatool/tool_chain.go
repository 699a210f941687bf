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

	"github.com/mark3labs/mcp-go/mcp"
)

// handleCallToolChain implements call_tool_chain. The dispatcher owns the
// three-tier decision (direct JSON, regex fast path, JavaScript sandbox)
// and the output-truncation boundary.
func (s *Server) handleCallToolChain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowChain() {
		return errorResponse("rate limit exceeded for call_tool_chain, please try again shortly"), nil
	}
	if s.dispatcher == nil {
		return errorResponse("call_tool_chain is not available: no dispatcher configured"), nil
	}

	code, err := request.RequireString("code")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	output, err := s.dispatcher.Dispatch(ctx, code)
	if err != nil {
		return errorResponse(fmt.Sprintf("call_tool_chain failed: %v", err)), nil
	}
	return textResponse(output), nil
}
