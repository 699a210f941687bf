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

package ipcdaemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/ipcsock"
)

func testPaths(t *testing.T) ipcsock.Paths {
	dir := t.TempDir()
	return ipcsock.Paths{
		Socket:   filepath.Join(dir, "test.sock"),
		PIDFile:  filepath.Join(dir, "test.pid"),
		LockFile: filepath.Join(dir, "test.lock"),
	}
}

func TestNew_BindsSocketAndWritesPIDFile(t *testing.T) {
	paths := testPaths(t)

	d, err := New(paths, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer d.listener.Close()

	if _, err := os.Stat(paths.Socket); err != nil {
		t.Errorf("socket file not created: %v", err)
	}
	pidFile := ipcsock.NewPIDFile(paths.PIDFile)
	pid, err := pidFile.Read()
	if err != nil {
		t.Fatalf("read PID file: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("PID file contains %d, want %d", pid, os.Getpid())
	}
}

func TestServe_AcceptsConnectionAndShutsDownOnContextCancel(t *testing.T) {
	paths := testPaths(t)

	d, err := New(paths, Config{ShutdownDrain: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.SetDeps(Deps{
		Engine:    backend.NewEngine(backend.EngineConfig{}),
		MCPServer: server.NewMCPServer("test", "0.0.1"),
	})
	defer d.deps.Engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- d.Serve(ctx) }()

	conn, err := net.DialTimeout("unix", paths.Socket, 2*time.Second)
	if err != nil {
		t.Fatalf("dial daemon socket: %v", err)
	}
	conn.Close()

	cancel()

	select {
	case err := <-serveErrCh:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}

	if _, err := os.Stat(paths.Socket); !os.IsNotExist(err) {
		t.Errorf("socket file not cleaned up: err=%v", err)
	}
	if _, err := os.Stat(paths.PIDFile); !os.IsNotExist(err) {
		t.Errorf("PID file not cleaned up: err=%v", err)
	}
}
