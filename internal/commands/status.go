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

	"github.com/spf13/cobra"

	"github.com/gatemini/gatemini/internal/ipcsock"
)

// NewStatusCommand reports whether a daemon is running and reachable,
// without starting one.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the gatemini daemon is running",
		// errExitCode carries no message; keep cobra from printing an
		// "Error:" line and usage for it.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	paths, err := ipcsock.Resolve()
	if err != nil {
		return err
	}

	if !ipcsock.IsDaemonAlive(paths.Socket) {
		fmt.Println("gatemini daemon is not running")
		return errExitCode(1)
	}

	pidFile := ipcsock.NewPIDFile(paths.PIDFile)
	if pid, err := pidFile.Read(); err == nil {
		fmt.Printf("gatemini daemon is running (pid %d, socket %s)\n", pid, paths.Socket)
	} else {
		fmt.Printf("gatemini daemon is running (socket %s)\n", paths.Socket)
	}
	return nil
}

// errExitCode is a plain error whose only purpose is to make the CLI
// exit non-zero without printing a redundant message past what runE's
// caller already wrote to stdout.
type errExitCode int

func (e errExitCode) Error() string { return "" }
