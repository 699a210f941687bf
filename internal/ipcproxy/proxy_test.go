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

package ipcproxy

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gatemini/gatemini/internal/ipcsock"
)

func TestTryConnect_SucceedsAgainstLiveListener(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, ok := tryConnect(socketPath, connectDeadline)
	if !ok {
		t.Fatal("tryConnect() = false, want true against a live listener")
	}
	conn.Close()
}

func TestTryConnect_FailsAgainstMissingSocket(t *testing.T) {
	dir := t.TempDir()
	if _, ok := tryConnect(filepath.Join(dir, "missing.sock"), 100*time.Millisecond); ok {
		t.Error("tryConnect() = true, want false against a nonexistent socket")
	}
}

func TestRemoveStaleSocket_RemovesWhenUnreachableAndPIDDead(t *testing.T) {
	dir := t.TempDir()
	paths := ipcsock.Paths{
		Socket:   filepath.Join(dir, "test.sock"),
		PIDFile:  filepath.Join(dir, "test.pid"),
		LockFile: filepath.Join(dir, "test.lock"),
	}

	if err := os.WriteFile(paths.Socket, nil, 0600); err != nil {
		t.Fatalf("write stale socket file: %v", err)
	}

	removeStaleSocket(paths, nil)

	if _, err := os.Stat(paths.Socket); !os.IsNotExist(err) {
		t.Errorf("stale socket file still present after removeStaleSocket: err=%v", err)
	}
}

func TestRemoveStaleSocket_LeavesLiveSocketUntouched(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	paths := ipcsock.Paths{Socket: socketPath}
	removeStaleSocket(paths, nil)

	if _, err := os.Stat(socketPath); err != nil {
		t.Errorf("live socket file removed: %v", err)
	}
}

func TestDialWithBackoff_ReturnsOnContextCancellation(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := dialWithBackoff(ctx, filepath.Join(dir, "never.sock"))
	if err == nil {
		t.Fatal("dialWithBackoff() returned nil error, want context cancellation error")
	}
}
