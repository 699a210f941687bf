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
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gatemini/gatemini/internal/ipcdaemon"
	"github.com/gatemini/gatemini/internal/ipcsock"
)

// NewServeCommand runs the daemon in the foreground: bind the socket,
// then initialize everything else, then accept connections until a
// termination signal or idle timeout.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gatemini daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to gatemini's YAML config file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	paths, err := ipcsock.Resolve()
	if err != nil {
		return err
	}

	// Bind before any other initialization so a racing proxy's connect
	// attempt queues rather than fails outright.
	daemon, err := ipcdaemon.New(paths, ipcdaemon.Config{Paths: paths})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	comps, err := bootstrap(ctx, configPath)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer comps.Close()

	daemon.SetDeps(ipcdaemon.Deps{
		Engine:    comps.Engine,
		Registry:  comps.Registry,
		MCPServer: comps.Server.MCPServer(),
		Logger:    comps.Logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.Serve(ctx)
}
