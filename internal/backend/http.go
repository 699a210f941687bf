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
	"sync"
)

// httpPeer is a Peer backed by a remote streamable HTTP MCP server.
type httpPeer struct {
	config ServerConfig

	mu     sync.RWMutex
	client *Client
}

func newHTTPPeer(config ServerConfig) *httpPeer {
	return &httpPeer{config: config}
}

func (p *httpPeer) Name() string { return p.config.Name }

func (p *httpPeer) Start(ctx context.Context) error {
	c, err := NewHTTPClient(ctx, HTTPClientConfig{
		ServerName: p.config.Name,
		URL:        p.config.URL,
		Headers:    p.config.Headers,
		Timeout:    p.config.Timeout,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.client = c
	p.mu.Unlock()
	return nil
}

// Stop closes the HTTP connection. There is no child process to escalate
// a kill signal to, unlike a stdio peer.
func (p *httpPeer) Stop(ctx context.Context) error {
	p.mu.Lock()
	c := p.client
	p.client = nil
	p.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}

func (p *httpPeer) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error) {
	c := p.activeClient()
	if c == nil {
		return nil, fmt.Errorf("backend %s is not running", p.config.Name)
	}
	return c.CallTool(ctx, req)
}

func (p *httpPeer) Ping(ctx context.Context) error {
	c := p.activeClient()
	if c == nil {
		return fmt.Errorf("backend %s is not running", p.config.Name)
	}
	return c.Ping(ctx)
}

func (p *httpPeer) DiscoverTools(ctx context.Context) ([]ToolDefinition, error) {
	c := p.activeClient()
	if c == nil {
		return nil, fmt.Errorf("backend %s is not running", p.config.Name)
	}
	return c.ListTools(ctx)
}

func (p *httpPeer) activeClient() *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Exited always returns nil: there is no child process to reap for a
// remote HTTP backend.
func (p *httpPeer) Exited() <-chan struct{} { return nil }
