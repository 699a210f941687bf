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
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gatemini/gatemini/internal/backend"
)

// handleDeregisterManual implements deregister_manual.
func (s *Server) handleDeregisterManual(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("rate limit exceeded, please try again shortly"), nil
	}

	name, err := request.RequireString("name")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	err = s.engine.DeregisterDynamic(name)
	switch {
	case err == nil:
		return textResponse(fmt.Sprintf("backend %q deregistered", name)), nil
	case errors.Is(err, backend.ErrBackendProtected):
		return textResponse("protected"), nil
	default:
		return textResponse("not found"), nil
	}
}
