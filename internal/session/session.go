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

// Package session binds one MCP protocol session to one accepted Unix
// socket connection. The daemon's accept loop spawns a session per
// connection against a single shared *server.MCPServer. List-changed
// notifications reach every live session through WireNotifications
// (notify.go), which subscribes to backend engine events and registry
// mutations and broadcasts via the server's SendNotificationToAllClients.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
)

// errorLogLevel is the slog level mcp-go's stdio transport logger is
// bridged at; transport-level errors are operationally interesting but
// not request-handling failures, so they log at Warn rather than Error.
const errorLogLevel = slog.LevelWarn

// Session serves one MCP protocol session over one accepted connection.
type Session struct {
	id     string
	conn   net.Conn
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New binds mcpServer to conn. conn is closed when Serve returns. Each
// session gets a random UUID used only for log correlation across the
// session's lifetime — gatemini has no cross-session session registry
// to key by it.
func New(conn net.Conn, mcpServer *server.MCPServer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{id: uuid.NewString(), conn: conn, mcp: mcpServer, logger: logger}
}

// Serve reads and writes MCP protocol frames on the connection until
// the client disconnects, ctx is cancelled, or a protocol error occurs.
// It always returns after the connection is fully drained and closed.
//
// mcp-go's stdio transport reads requests from an io.Reader and writes
// responses to an io.Writer; a net.Conn satisfies both, so the same
// transport that serves os.Stdin/os.Stdout in direct mode serves a
// socket connection here.
func (s *Session) Serve(ctx context.Context) error {
	defer s.conn.Close()

	remote := s.conn.RemoteAddr()
	s.logger.Debug("session starting", "session_id", s.id, "remote", remote)

	stdioServer := server.NewStdioServer(s.mcp)
	stdioServer.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), errorLogLevel))

	// Listen blocks reading from the connection; closing it directly on
	// ctx cancellation unblocks that read regardless of whether the
	// transport itself watches ctx internally.
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	err := stdioServer.Listen(ctx, s.conn, s.conn)
	if err != nil && ctx.Err() == nil {
		s.logger.Debug("session ended", "session_id", s.id, "remote", remote, "error", err)
		return fmt.Errorf("session: %w", err)
	}
	s.logger.Debug("session ended", "session_id", s.id, "remote", remote)
	return nil
}

// ID returns the session's correlation identifier.
func (s *Session) ID() string {
	return s.id
}
