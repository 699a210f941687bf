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
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gatemini/gatemini/internal/backend"
)

// manualBackendFragment mirrors the subset of a static backend config
// entry that register_manual accepts.
type manualBackendFragment struct {
	Name           string            `json:"name"`
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// handleRegisterManual implements register_manual.
func (s *Server) handleRegisterManual(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("rate limit exceeded, please try again shortly"), nil
	}

	raw, err := json.Marshal(argumentsMap(request))
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	var frag manualBackendFragment
	if err := json.Unmarshal(raw, &frag); err != nil {
		return errorResponse(fmt.Sprintf("invalid backend config fragment: %v", err)), nil
	}

	if frag.Name == "" {
		return errorResponse("name is required"), nil
	}
	if frag.Command == "" && frag.URL == "" {
		return errorResponse("exactly one of command or url is required"), nil
	}
	if frag.Command != "" && frag.URL != "" {
		return errorResponse("exactly one of command or url is required, not both"), nil
	}
	if frag.Command != "" {
		if err := validateCommandPath(frag.Command); err != nil {
			return errorResponse(err.Error()), nil
		}
	}

	env := make([]string, 0, len(frag.Env))
	for k, v := range frag.Env {
		env = append(env, k+"="+v)
	}

	timeout := 30 * time.Second
	if frag.TimeoutSeconds > 0 {
		timeout = time.Duration(frag.TimeoutSeconds) * time.Second
	}

	cfg := backend.ServerConfig{
		Name:    frag.Name,
		Command: frag.Command,
		Args:    frag.Args,
		Env:     env,
		URL:     frag.URL,
		Headers: frag.Headers,
		Timeout: timeout,
	}

	if err := s.engine.AddBackend(cfg, backend.HealthPolicy{}, true); err != nil {
		return errorResponse(fmt.Sprintf("registration failed: %v", err)), nil
	}
	token, _ := s.engine.RegistrationToken(frag.Name)
	return textResponse(fmt.Sprintf("backend %q registered (registration_token=%s)", frag.Name, token)), nil
}
