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

import "os"

// ProcessHandle is the subset of *os.Process a stdio peer needs to force
// a child server's process group down when a graceful close doesn't land
// in time. Termination always goes through the group (see gracefulStop
// in stdio.go), so the only thing callers need is the pid that doubles
// as the group's pgid. *os.Process is wrapped by osProcess below; tests
// substitute a fake.
type ProcessHandle interface {
	Pid() int
}

// osProcess adapts *os.Process to ProcessHandle (os.Process.Pid is a field,
// not a method).
type osProcess struct {
	proc *os.Process
}

func (p *osProcess) Pid() int { return p.proc.Pid }
