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

// Package commands implements gatemini's CLI subcommands: the default
// proxy entry point plus serve, status, and stop.
package commands

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion records build-time version information, set from main via
// ldflags.
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}
