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

package backend

import (
	"context"
	"fmt"
	"time"
)

// ServerConfig defines the configuration for a single MCP backend.
// Exactly one of Command or URL is set: Command spawns a child process
// speaking MCP over stdio, URL dials a remote streamable HTTP server.
type ServerConfig struct {
	// Name is the unique identifier for this server
	Name string

	// Command is the executable to run for a stdio backend
	Command string

	// Args are the command-line arguments
	Args []string

	// Env are environment variables to pass to the server
	Env []string

	// URL is the endpoint for a streamable HTTP backend
	URL string

	// Headers are HTTP headers to send with every request to URL
	Headers map[string]string

	// Timeout is the default timeout for tool calls (defaults to 30s)
	Timeout time.Duration

	// RequiredKeys names the environment keys a caller must supply for
	// this backend to function, independent of the Env keys already
	// baked into its process or request headers.
	RequiredKeys []string
}

// IsHTTP reports whether this config describes a streamable HTTP backend
// rather than a stdio child process.
func (c ServerConfig) IsHTTP() bool {
	return c.URL != ""
}

// Peer is one MCP backend gatemini supervises: a child process or a
// remote HTTP server, abstracted behind a single lifecycle and call
// surface so the engine and health supervisor don't need to know which.
type Peer interface {
	// Name returns the backend's configured name.
	Name() string

	// Start brings the peer up: spawns the process or dials the
	// endpoint, then completes the MCP initialize handshake.
	Start(ctx context.Context) error

	// Stop tears the peer down, releasing any process or connection.
	Stop(ctx context.Context) error

	// CallTool invokes a tool on the peer.
	CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error)

	// Ping verifies the peer is still responsive.
	Ping(ctx context.Context) error

	// DiscoverTools lists the tools the peer currently exposes.
	DiscoverTools(ctx context.Context) ([]ToolDefinition, error)

	// Exited returns a channel that is closed if the peer's underlying
	// child process exits on its own, outside of a Stop call. The health
	// supervisor's reaper selects on it to notice a crash immediately
	// rather than waiting for the next ping. HTTP peers have no child
	// process to reap and return nil, which never fires in a select.
	Exited() <-chan struct{}
}

// NewPeer constructs the appropriate Peer implementation for config.
func NewPeer(config ServerConfig) (Peer, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("backend name is required")
	}
	if config.IsHTTP() {
		return newHTTPPeer(config), nil
	}
	if config.Command == "" {
		return nil, fmt.Errorf("backend %s: exactly one of command or url is required", config.Name)
	}
	return newStdioPeer(config), nil
}
