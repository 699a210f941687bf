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

package commands

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gatemini/gatemini/internal/ipcsock"
)

// NewStopCommand signals a running daemon to shut down gracefully by
// sending SIGTERM to its recorded PID; the daemon's own signal handling
// does the rest (stop accepting, drain sessions, clean up files).
func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running gatemini daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop()
		},
	}
}

func runStop() error {
	paths, err := ipcsock.Resolve()
	if err != nil {
		return err
	}

	if !ipcsock.IsDaemonAlive(paths.Socket) {
		fmt.Println("gatemini daemon is not running")
		return nil
	}

	pidFile := ipcsock.NewPIDFile(paths.PIDFile)
	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("stop: daemon is running but its PID file is unreadable: %w", err)
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("stop: signal daemon (pid %d): %w", pid, err)
	}

	fmt.Printf("sent SIGTERM to gatemini daemon (pid %d)\n", pid)
	return nil
}
