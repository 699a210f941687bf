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
	"os/exec"
	"syscall"
	"time"
)

// PrerequisiteConfig describes an external process a backend depends on
// being present before it is started.
type PrerequisiteConfig struct {
	// Command and Args spawn the prerequisite if MatchPattern doesn't
	// find it already running.
	Command string
	Args    []string

	// Env are additional KEY=VALUE environment entries, appended to the
	// inherited environment.
	Env []string

	// Cwd is the working directory for the spawned process, defaulting
	// to the daemon's own if empty.
	Cwd string

	// MatchPattern is a substring checked against every running
	// process's command line. If it matches an existing process, that
	// process is left alone and nothing is spawned. If empty, the
	// prerequisite is spawned unconditionally.
	MatchPattern string

	// Managed marks a spawned (not matched) prerequisite for group-kill
	// at daemon shutdown.
	Managed bool

	// StartupDelay is how long to wait after spawning before the
	// dependent backend is started, giving the prerequisite time to
	// become ready.
	StartupDelay time.Duration
}

// EnsurePrerequisite makes sure cfg's process is available, spawning
// Command if MatchPattern doesn't find a running match. It returns the
// pid of a process it spawned and managed, or 0 if nothing needs to be
// torn down later (either an existing process matched, or the spawned
// process wasn't marked Managed).
func EnsurePrerequisite(ctx context.Context, name string, cfg PrerequisiteConfig) (int, error) {
	if cfg.MatchPattern != "" {
		if _, found := findProcessByPattern(cfg.MatchPattern); found {
			return 0, nil
		}
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	if cfg.Cwd != "" {
		cmd.Dir = cfg.Cwd
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn prerequisite %s: %w", name, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("prerequisite %s started but failed to release: %w", name, err)
	}

	if cfg.StartupDelay > 0 {
		select {
		case <-time.After(cfg.StartupDelay):
		case <-ctx.Done():
		}
	}

	if !cfg.Managed {
		return 0, nil
	}
	return pid, nil
}

// StopPrerequisite sends SIGTERM to pid's process group. It's used at
// daemon shutdown for every prerequisite EnsurePrerequisite spawned and
// marked Managed; fire-and-forget prerequisites are left running.
func StopPrerequisite(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}
