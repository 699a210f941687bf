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

// Package ipcsock resolves the well-known filesystem paths the proxy and
// daemon use to find each other, and arbitrates which of several
// concurrently-starting processes gets to run the daemon.
package ipcsock

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrUnsupportedPlatform is returned when daemon mode is requested on a
	// platform without Unix domain socket support.
	ErrUnsupportedPlatform = errors.New("daemon mode requires a unix domain socket; use --direct on this platform")

	// ErrLockHeld is returned when another process already holds the
	// single-winner startup lock.
	ErrLockHeld = errors.New("daemon startup lock is held by another process")
)

// Paths bundles the three filesystem locations a daemon instance owns.
type Paths struct {
	Socket string
	PIDFile string
	LockFile string
}

// Resolve computes the socket/pidfile/lockfile triplet for the current
// user, preferring $XDG_RUNTIME_DIR and falling back to the OS temp
// directory, matching the external interface documented for gatemini.
func Resolve() (Paths, error) {
	if runtime.GOOS == "windows" {
		return Paths{}, ErrUnsupportedPlatform
	}

	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}

	uid := os.Getuid()
	base := filepath.Join(dir, fmt.Sprintf("gatemini-%d", uid))
	return Paths{
		Socket:   base + ".sock",
		PIDFile:  base + ".sock.pid",
		LockFile: base + ".sock.lock",
	}, nil
}

// IsDaemonAlive reports whether a daemon is listening on the socket by
// attempting to connect rather than trusting a stat() of the socket file,
// which can linger after the owning process has died.
func IsDaemonAlive(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Lock is a held advisory exclusive lock on the startup coordination file.
// Releasing it (or the process dying) makes the lock available again.
type Lock struct {
	f *os.File
}

// TryAcquireExclusiveLock attempts to take the single-winner startup lock.
// When nonblocking is true it returns ErrLockHeld immediately if another
// process holds the lock; otherwise it blocks until the lock is available.
func TryAcquireExclusiveLock(path string, nonblocking bool) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	how := unix.LOCK_EX
	if nonblocking {
		how |= unix.LOCK_NB
	}

	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("flock lock file: %w", err)
	}

	return &Lock{f: f}, nil
}

// Release drops the lock and closes the underlying file descriptor.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

// CleanupFiles removes the socket and PID files. Errors from
// already-missing files are ignored. The lock file is left in place: it
// is long-lived coordination state, and unlinking it while another
// process holds the flock would let a second process lock a fresh file.
func CleanupFiles(p Paths) {
	os.Remove(p.Socket)
	os.Remove(p.PIDFile)
}
