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

// Command gatemini is a local MCP multiplexing gateway: it exposes one
// fixed meta-tool surface to every connected agent and fans calls out
// to many supervised backend MCP servers, discovered and invoked
// through search rather than upfront enumeration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatemini/gatemini/internal/commands"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	commands.SetVersion(version, commit, buildDate)

	root := newRootCommand()
	root.AddCommand(commands.NewServeCommand())
	root.AddCommand(commands.NewStatusCommand())
	root.AddCommand(commands.NewStopCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand builds the default (no subcommand) entry point: proxy
// mode, reading MCP requests on stdin and writing responses on stdout.
func newRootCommand() *cobra.Command {
	var configPath string
	var direct bool

	cmd := &cobra.Command{
		Use:   "gatemini",
		Short: "Local MCP multiplexing gateway",
		Long: `gatemini exposes a fixed seven-tool discovery surface to MCP clients
and routes calls to many backend MCP servers behind it, found by search
rather than enumerated upfront.

Run with no subcommand to act as a thin proxy: it reuses a background
daemon if one is running, spawning one on first use, and bridges stdin/
stdout to it. Pass --direct to run a single in-process session with no
daemon or socket, useful for debugging or environments without Unix
domain sockets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunProxy(cmd.Context(), commands.ProxyOptions{
				ConfigPath: configPath,
				Direct:     direct,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to gatemini's YAML config file")
	cmd.Flags().BoolVar(&direct, "direct", false, "run a single in-process session without a daemon or socket")

	return cmd
}
