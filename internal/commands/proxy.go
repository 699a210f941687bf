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

	"github.com/gatemini/gatemini/internal/ipcproxy"
	"github.com/gatemini/gatemini/internal/ipcsock"
)

// ProxyOptions configures the default CLI entry point.
type ProxyOptions struct {
	ConfigPath string

	// Direct runs a single in-process meta-tool session on this
	// process's own stdio, bypassing the daemon and socket entirely.
	Direct bool
}

// RunProxy implements gatemini's default (no subcommand) behavior.
func RunProxy(ctx context.Context, opts ProxyOptions) error {
	if opts.Direct {
		comps, err := bootstrap(ctx, opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("direct mode: %w", err)
		}
		defer comps.Close()
		return comps.Server.Run(ctx)
	}

	paths, err := ipcsock.Resolve()
	if err != nil {
		return fmt.Errorf("gatemini requires a unix domain socket; retry with --direct: %w", err)
	}

	return ipcproxy.Run(ctx, ipcproxy.Config{
		Paths:      paths,
		ConfigPath: opts.ConfigPath,
	})
}
