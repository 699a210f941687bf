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
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/config"
	"github.com/gatemini/gatemini/internal/metatool"
	"github.com/gatemini/gatemini/internal/registry"
	"github.com/gatemini/gatemini/internal/sandbox"
	"github.com/gatemini/gatemini/internal/secret"
	"github.com/gatemini/gatemini/internal/session"
	"github.com/gatemini/gatemini/internal/telemetry"
)

// components bundles everything built from a config file: the backend
// engine, tool registry, sandbox dispatcher, and meta-tool MCP server.
// Both direct mode and the daemon assemble one of these the same way.
type components struct {
	Config      *config.Config
	Registry    *registry.Registry
	Engine      *backend.Engine
	CacheWriter *registry.CacheWriter
	Server      *metatool.Server
	Logger      *slog.Logger

	// prerequisitePids are the managed prerequisite processes bootstrap
	// spawned, by backend name, torn down by Close via process-group
	// SIGTERM.
	prerequisitePids map[string]int
}

// bootstrap loads configPath (or applies documented defaults if empty),
// resolves secrets, builds the registry and backend engine, seeds the
// registry from its on-disk cache, registers every configured backend,
// and wires a meta-tool MCP server with notifications subscribed to
// both. It does not start background health supervision beyond what
// AddBackend itself starts, and does not bind any socket.
func bootstrap(ctx context.Context, configPath string) (*components, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	telemetry.Install(telemetry.NewTracerProvider())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	resolver := secret.NewResolver()
	resolver.Register(secret.NewEnvProvider())
	if cfg.Secrets.KeychainService != "" {
		resolver.Register(secret.NewKeychainProvider(cfg.Secrets.KeychainService))
	}
	if cfg.Secrets.AWSSecrets {
		awsProvider, err := secret.NewAWSSecretsProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("init AWS secrets provider: %w", err)
		}
		resolver.Register(awsProvider)
	}

	reg := registry.NewRegistry(nil)

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = defaultCacheDir()
	}
	cachePath := filepath.Join(cacheDir, "tools.json")
	if cf, err := registry.LoadCache(cachePath); err == nil {
		cf.Populate(reg)
	} else {
		logger.Warn("failed to load tool cache, starting empty", "error", err)
	}
	cacheWriter := registry.NewCacheWriter(cachePath, reg)

	engine := backend.NewEngine(backend.EngineConfig{
		Logger:             logger,
		MaxDynamicBackends: cfg.MaxDynamicBackends,
	})

	prerequisitePids := make(map[string]int)
	for _, b := range cfg.Backends {
		if b.Prerequisite != nil {
			pid, err := backend.EnsurePrerequisite(ctx, b.Name, toPrerequisiteConfig(*b.Prerequisite))
			if err != nil {
				return nil, fmt.Errorf("ensure prerequisite for backend %q: %w", b.Name, err)
			}
			if pid != 0 {
				prerequisitePids[b.Name] = pid
			}
		}

		serverConfig, err := resolveBackendConfig(ctx, b, resolver)
		if err != nil {
			return nil, fmt.Errorf("resolve backend %q: %w", b.Name, err)
		}
		health := backend.HealthPolicy{}
		if b.Health != nil {
			health = toHealthPolicy(*b.Health)
		}
		if err := engine.AddBackend(serverConfig, health, false); err != nil {
			return nil, fmt.Errorf("add backend %q: %w", b.Name, err)
		}
	}

	dispatcher := sandbox.NewDispatcher(engine, reg, sandbox.DispatcherConfig{
		MaxOutputSize: cfg.Sandbox.MaxOutputSize,
		Bridge:        sandbox.BridgeConfig{WallClock: cfg.Sandbox.Timeout},
	})

	mcpServer, err := metatool.NewServer(metatool.ServerConfig{
		Name:     "gatemini",
		Version:  version,
		LogLevel: cfg.LogLevel,
	}, metatool.Deps{
		Registry:   reg,
		Engine:     engine,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return nil, fmt.Errorf("create meta-tool server: %w", err)
	}

	session.WireNotifications(mcpServer.MCPServer(), engine, reg)

	return &components{
		Config:           cfg,
		Registry:         reg,
		Engine:           engine,
		CacheWriter:      cacheWriter,
		Server:           mcpServer,
		Logger:           logger,
		prerequisitePids: prerequisitePids,
	}, nil
}

func (c *components) Close() {
	c.CacheWriter.Stop()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := c.Engine.StopAll(stopCtx); err != nil {
		c.Logger.Warn("in-flight backend calls did not drain before shutdown", "error", err)
	}
	cancel()
	for name, pid := range c.prerequisitePids {
		c.Logger.Info("stopping managed prerequisite", "backend", name, "pid", pid)
		backend.StopPrerequisite(pid)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(dir, "gatemini")
}

func toHealthPolicy(h config.HealthConfig) backend.HealthPolicy {
	return backend.HealthPolicy{
		Interval:         h.Interval,
		FailureThreshold: h.FailureThreshold,
		RestartWindow:    h.RestartWindow,
		InitialBackoff:   h.InitialBackoff,
		MaxBackoff:       h.MaxBackoff,
	}
}

func toPrerequisiteConfig(p config.PrerequisiteConfig) backend.PrerequisiteConfig {
	env := make([]string, 0, len(p.Env))
	for k, v := range p.Env {
		env = append(env, k+"="+v)
	}
	return backend.PrerequisiteConfig{
		Command:      p.Command,
		Args:         p.Args,
		Env:          env,
		Cwd:          p.Cwd,
		MatchPattern: p.MatchPattern,
		Managed:      p.Managed,
		StartupDelay: p.StartupDelay,
	}
}

// resolveBackendConfig expands a configured backend into the form the
// engine consumes, resolving any secretref: values in its environment
// and HTTP headers.
func resolveBackendConfig(ctx context.Context, b config.BackendConfig, resolver *secret.Resolver) (backend.ServerConfig, error) {
	env := make([]string, 0, len(b.Env))
	for k, v := range b.Env {
		resolved, err := resolver.Resolve(ctx, v)
		if err != nil {
			return backend.ServerConfig{}, fmt.Errorf("resolve env %s: %w", k, err)
		}
		env = append(env, k+"="+resolved)
	}

	headers := make(map[string]string, len(b.Headers))
	for k, v := range b.Headers {
		resolved, err := resolver.Resolve(ctx, v)
		if err != nil {
			return backend.ServerConfig{}, fmt.Errorf("resolve header %s: %w", k, err)
		}
		headers[k] = resolved
	}

	return backend.ServerConfig{
		Name:         b.Name,
		Command:      b.Command,
		Args:         b.Args,
		Env:          env,
		URL:          b.URL,
		Headers:      headers,
		Timeout:      b.Timeout,
		RequiredKeys: b.RequiredKeys,
	}, nil
}
