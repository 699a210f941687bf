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

// Package ipcproxy implements gatemini's default CLI mode: a thin,
// single-shot byte pipe between the invoking agent's stdio and the
// shared daemon's Unix socket, spawning the daemon on first use.
package ipcproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/gatemini/gatemini/internal/ipcsock"
)

// detachedProcAttr fully detaches the spawned daemon from the proxy's
// controlling terminal and process group, mirroring the daemon-spawn
// idiom used elsewhere to background long-lived processes.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true,
	}
}

// Config configures a proxy run.
type Config struct {
	Paths ipcsock.Paths

	// ConfigPath is forwarded to a spawned daemon via -c.
	ConfigPath string

	// DaemonExecutable is the binary to spawn for the daemon; defaults
	// to the current executable with "serve" appended.
	DaemonExecutable string

	Logger *slog.Logger
}

// connectDeadline bounds the proxy's first connection attempt.
const connectDeadline = 2 * time.Second

// dialBackoffInitial and dialBackoffMax bound the exponential backoff
// used while waiting for a freshly spawned daemon's socket to come up.
const (
	dialBackoffInitial = 50 * time.Millisecond
	dialBackoffMax     = time.Second
	dialBudget         = 30 * time.Second
)

// Run implements the lifecycle from spec: reuse a live daemon, race
// other proxies to spawn one if none is live, then bridge stdin/stdout
// to the socket until either side closes.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	removeStaleSocket(cfg.Paths, logger)

	if conn, ok := tryConnect(cfg.Paths.Socket, connectDeadline); ok {
		return bridge(ctx, conn, logger)
	}

	lock, err := ipcsock.TryAcquireExclusiveLock(cfg.Paths.LockFile, true)
	switch {
	case err == nil:
		defer lock.Release()

		// Race protection: another proxy may have spawned the daemon
		// between our first dial attempt and acquiring the lock.
		if conn, ok := tryConnect(cfg.Paths.Socket, connectDeadline); ok {
			return bridge(ctx, conn, logger)
		}

		if err := spawnDaemon(cfg, logger); err != nil {
			return fmt.Errorf("ipcproxy: spawn daemon: %w", err)
		}

	case errors.Is(err, ipcsock.ErrLockHeld):
		logger.Debug("daemon startup lock held by another proxy, waiting for socket")

	default:
		return fmt.Errorf("ipcproxy: acquire startup lock: %w", err)
	}

	conn, err := dialWithBackoff(ctx, cfg.Paths.Socket)
	if err != nil {
		return fmt.Errorf("ipcproxy: daemon never became reachable: %w", err)
	}
	return bridge(ctx, conn, logger)
}

// removeStaleSocket clears a socket file left behind by a daemon whose
// recorded PID is no longer alive; a live socket is left untouched even
// if the PID file is missing, since IsDaemonAlive is the source of truth.
func removeStaleSocket(paths ipcsock.Paths, logger *slog.Logger) {
	if _, err := os.Stat(paths.Socket); err != nil {
		return
	}
	if ipcsock.IsDaemonAlive(paths.Socket) {
		return
	}

	pidFile := ipcsock.NewPIDFile(paths.PIDFile)
	if pid, err := pidFile.Read(); err == nil && ipcsock.IsProcessAlive(pid) {
		return
	}

	if logger != nil {
		logger.Debug("removing stale socket", "path", paths.Socket)
	}
	ipcsock.CleanupFiles(paths)
}

func tryConnect(socketPath string, deadline time.Duration) (net.Conn, bool) {
	conn, err := net.DialTimeout("unix", socketPath, deadline)
	if err != nil {
		return nil, false
	}
	return conn, true
}

func dialWithBackoff(ctx context.Context, socketPath string) (net.Conn, error) {
	deadline := time.Now().Add(dialBudget)
	backoff := dialBackoffInitial

	for {
		if conn, ok := tryConnect(socketPath, connectDeadline); ok {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out after %s waiting for daemon socket", dialBudget)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > dialBackoffMax {
			backoff = dialBackoffMax
		}
	}
}

// spawnDaemon launches the daemon as a detached child: null stdin/
// stdout (so it never contends with the proxy's own stdio framing) and
// inherited stderr (so startup failures are visible to the invoking
// terminal before the socket exists to report them any other way).
func spawnDaemon(cfg Config, logger *slog.Logger) error {
	executable := cfg.DaemonExecutable
	if executable == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable path: %w", err)
		}
		executable = self
	}

	args := []string{"serve"}
	if cfg.ConfigPath != "" {
		args = append(args, "-c", cfg.ConfigPath)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon process: %w", err)
	}

	logger.Debug("spawned daemon", "pid", cmd.Process.Pid)

	// The daemon detaches into its own session; the proxy does not wait
	// on it, only on the socket becoming connectable.
	go cmd.Process.Release()

	return nil
}

// bridge copies bytes bidirectionally between the process's stdio and
// the daemon connection until either side reaches EOF or a broken pipe,
// mirroring the half-close propagation of a TCP-to-socket forwarder but
// rooted at os.Stdin/os.Stdout instead of an accepted connection.
func bridge(ctx context.Context, conn net.Conn, logger *slog.Logger) error {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, err := io.Copy(conn, os.Stdin)
		if err != nil && !isExpectedCloseError(err) {
			logger.Debug("stdin->socket copy error", "error", err)
		}
		if unixConn, ok := conn.(*net.UnixConn); ok {
			unixConn.CloseWrite()
		}
	}()

	go func() {
		defer wg.Done()
		_, err := io.Copy(os.Stdout, conn)
		if err != nil && !isExpectedCloseError(err) {
			logger.Debug("socket->stdout copy error", "error", err)
		}
	}()

	wg.Wait()
	return nil
}

func isExpectedCloseError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed)
}
