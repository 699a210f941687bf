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

// Package ipcdaemon runs gatemini's long-lived background process: one
// Unix socket accepting connections from many short-lived proxy
// invocations, each bridged to its own MCP session against a shared
// backend engine and tool registry.
package ipcdaemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/ipcsock"
	"github.com/gatemini/gatemini/internal/registry"
	"github.com/gatemini/gatemini/internal/session"
)

// Deps are the already-constructed components the daemon multiplexes
// sessions over. They outlive any single connection.
type Deps struct {
	Engine    *backend.Engine
	Registry  *registry.Registry
	MCPServer *server.MCPServer
	Logger    *slog.Logger
}

// Config tunes the daemon's lifecycle.
type Config struct {
	Paths ipcsock.Paths

	// IdleTimeout shuts the daemon down after this long with zero
	// active sessions. Zero selects the 10-minute default; a negative
	// value disables the idle timer.
	IdleTimeout time.Duration

	// ShutdownDrain bounds how long graceful shutdown waits for
	// in-flight sessions to close on their own before the listener's
	// connections are forced closed.
	ShutdownDrain time.Duration
}

func (c *Config) applyDefaults() {
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.ShutdownDrain == 0 {
		c.ShutdownDrain = 5 * time.Second
	}
}

// Daemon owns the Unix socket listener and the accept loop.
type Daemon struct {
	cfg     Config
	paths   ipcsock.Paths
	pidFile *ipcsock.PIDFile
	deps    Deps
	logger  *slog.Logger

	listener      net.Listener
	activeSession sync.WaitGroup
	sessionCount  atomic.Int64
}

// New binds the Unix socket and writes the PID file. Per spec, binding
// happens before any other initialization so a racing proxy's
// connection attempt queues in the kernel's receive backlog rather than
// failing outright; callers should call New as early as possible and do
// config/secret/registry/cache setup only after it returns successfully.
func New(paths ipcsock.Paths, cfg Config) (*Daemon, error) {
	cfg.applyDefaults()
	cfg.Paths = paths

	os.Remove(paths.Socket)
	ln, err := net.Listen("unix", paths.Socket)
	if err != nil {
		return nil, fmt.Errorf("ipcdaemon: bind socket %s: %w", paths.Socket, err)
	}

	pidFile := ipcsock.NewPIDFile(paths.PIDFile)
	if err := pidFile.Create(os.Getpid()); err != nil {
		ln.Close()
		os.Remove(paths.Socket)
		return nil, fmt.Errorf("ipcdaemon: write PID file: %w", err)
	}

	return &Daemon{cfg: cfg, paths: paths, pidFile: pidFile, listener: ln}, nil
}

// SetDeps attaches the engine/registry/MCP server the daemon multiplexes
// sessions over. Call once, after New and after the rest of startup
// (config load, secret resolution, registry cache load, background
// task spawning) has completed.
func (d *Daemon) SetDeps(deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	d.deps = deps
	d.logger = deps.Logger
}

// Serve runs the accept loop until ctx is cancelled, then performs
// graceful shutdown: stop accepting, signal sessions to close, wait up
// to ShutdownDrain, stop all peers, and remove the socket/PID files
// (the lock file is kept).
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		d.listener.Close()
	}()

	d.logger.Info("daemon listening", "socket", d.listener.Addr())

	var idleTimer *time.Timer
	if d.cfg.IdleTimeout > 0 {
		idleTimer = time.NewTimer(d.cfg.IdleTimeout)
		defer idleTimer.Stop()
	}

	connCh := make(chan net.Conn)
	acceptErrCh := make(chan error, 1)
	go d.acceptLoop(connCh, acceptErrCh)

	for {
		var idleFired <-chan time.Time
		if idleTimer != nil && d.sessionCount.Load() == 0 {
			idleFired = idleTimer.C
		}

		select {
		case conn, ok := <-connCh:
			if !ok {
				return d.shutdown()
			}
			d.resetIdleTimer(idleTimer)
			d.sessionCount.Add(1)
			d.activeSession.Add(1)
			go d.runSession(ctx, conn)

		case err := <-acceptErrCh:
			if err != nil && !errors.Is(err, net.ErrClosed) {
				d.logger.Error("accept failed", "error", err)
			}
			return d.shutdown()

		case <-idleFired:
			d.logger.Info("idle timeout reached with no active sessions, shutting down")
			cancel()

		case <-ctx.Done():
			return d.shutdown()
		}
	}
}

func (d *Daemon) resetIdleTimer(t *time.Timer) {
	if t == nil {
		return
	}
	t.Reset(d.cfg.IdleTimeout)
}

func (d *Daemon) acceptLoop(connCh chan<- net.Conn, errCh chan<- error) {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			close(connCh)
			errCh <- err
			return
		}
		connCh <- conn
	}
}

func (d *Daemon) runSession(ctx context.Context, conn net.Conn) {
	defer d.activeSession.Done()
	defer d.sessionCount.Add(-1)

	sess := session.New(conn, d.deps.MCPServer, d.logger)
	if err := sess.Serve(ctx); err != nil {
		d.logger.Debug("session error", "error", err)
	}
}

func (d *Daemon) shutdown() error {
	d.logger.Info("daemon shutting down")
	d.listener.Close()

	drained := make(chan struct{})
	go func() {
		d.activeSession.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(d.cfg.ShutdownDrain):
		d.logger.Warn("shutdown drain deadline exceeded, forcing close")
	}

	if d.deps.Engine != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownDrain)
		if err := d.deps.Engine.StopAll(stopCtx); err != nil {
			d.logger.Warn("in-flight backend calls did not drain before shutdown", "error", err)
		}
		cancel()
	}

	d.pidFile.Remove()
	ipcsock.CleanupFiles(d.paths)
	return nil
}
