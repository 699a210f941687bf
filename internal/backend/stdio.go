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
	"os"
	"sync"
	"syscall"
	"time"
)

// stdioPeer is a Peer backed by a child process speaking MCP over stdio.
type stdioPeer struct {
	config ServerConfig

	mu       sync.RWMutex
	client   *Client
	exitedCh chan struct{}
}

func newStdioPeer(config ServerConfig) *stdioPeer {
	return &stdioPeer{config: config}
}

func (p *stdioPeer) Name() string { return p.config.Name }

func (p *stdioPeer) Start(ctx context.Context) error {
	c, err := NewClient(ctx, ClientConfig{
		ServerName: p.config.Name,
		Command:    p.config.Command,
		Args:       p.config.Args,
		Env:        p.config.Env,
		Timeout:    p.config.Timeout,
	})
	if err != nil {
		return err
	}

	exited := make(chan struct{})
	p.mu.Lock()
	p.client = c
	p.exitedCh = exited
	p.mu.Unlock()

	go reapProcess(c.Process(), exited)
	return nil
}

// Stop closes the MCP connection, then sends SIGTERM to the child's
// process group and gives it up to 200ms to exit before SIGKILL.
func (p *stdioPeer) Stop(ctx context.Context) error {
	p.mu.Lock()
	c := p.client
	p.client = nil
	p.mu.Unlock()

	if c == nil {
		return nil
	}

	proc := c.Process()
	err := c.Close()
	gracefulStop(proc, 200*time.Millisecond)
	return err
}

func (p *stdioPeer) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error) {
	c := p.activeClient()
	if c == nil {
		return nil, fmt.Errorf("backend %s is not running", p.config.Name)
	}
	return c.CallTool(ctx, req)
}

func (p *stdioPeer) Ping(ctx context.Context) error {
	c := p.activeClient()
	if c == nil {
		return fmt.Errorf("backend %s is not running", p.config.Name)
	}
	return c.Ping(ctx)
}

func (p *stdioPeer) DiscoverTools(ctx context.Context) ([]ToolDefinition, error) {
	c := p.activeClient()
	if c == nil {
		return nil, fmt.Errorf("backend %s is not running", p.config.Name)
	}
	return c.ListTools(ctx)
}

func (p *stdioPeer) activeClient() *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Exited returns the channel reapProcess closes once this generation's
// child has died, or nil if the peer was never started.
func (p *stdioPeer) Exited() <-chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitedCh
}

// reapProcess polls proc's liveness and closes exited the moment it's
// gone. mcp-go's stdio transport owns the child's *exec.Cmd and may call
// its own cmd.Wait() during Close, so this polls rather than blocking on
// cmd.Wait() itself, to avoid a second Wait racing the transport's.
func reapProcess(proc ProcessHandle, exited chan struct{}) {
	if proc == nil {
		return
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if !isProcessAlive(proc.Pid()) {
			close(exited)
			return
		}
	}
}

// gracefulStop sends SIGTERM to proc's entire process group and polls for
// exit, escalating to SIGKILL of the group if it's still alive once
// timeout elapses. Signalling the group rather than just the direct child
// reaches any grandchildren the server spawned itself (they inherit its
// process group, set up by setNewProcessGroup before the child started).
// Never waits on or reaps orphaned grandchildren left in the kernel's
// tree beyond the direct child.
func gracefulStop(proc ProcessHandle, timeout time.Duration) {
	if proc == nil {
		return
	}
	pgid := proc.Pid()

	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !isProcessAlive(proc.Pid()) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
