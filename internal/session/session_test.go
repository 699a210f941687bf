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

package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

// newPipePair returns both ends of an in-memory net.Pipe; each end is a
// net.Conn that Session can serve over.
func newPipePair() (net.Conn, net.Conn) {
	return net.Pipe()
}

func TestSession_ServeReturnsWhenContextCancelled(t *testing.T) {
	serverSide, clientSide := newPipePair()
	defer clientSide.Close()

	mcpServer := server.NewMCPServer("test", "0.0.1")
	sess := New(serverSide, mcpServer, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sess.Serve(ctx) }()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
