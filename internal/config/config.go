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

// Package config loads, expands, validates, and hot-reloads gatemini's
// YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of gatemini's configuration file.
type Config struct {
	LogLevel           string          `yaml:"log_level"`
	CacheDir           string          `yaml:"cache_dir"`
	Backends           []BackendConfig `yaml:"backends"`
	Health             HealthConfig    `yaml:"health"`
	Semantic           SemanticConfig  `yaml:"semantic"`
	Sandbox            SandboxConfig   `yaml:"sandbox"`
	Secrets            SecretsConfig   `yaml:"secrets"`
	Expand             ExpandConfig    `yaml:"expand"`
	MaxDynamicBackends int             `yaml:"max_dynamic_backends"`
}

// BackendConfig describes one MCP server gatemini should supervise or
// proxy requests to. Exactly one of Command or URL must be set.
type BackendConfig struct {
	Name         string              `yaml:"name"`
	Command      string              `yaml:"command"`
	Args         []string            `yaml:"args"`
	Env          map[string]string   `yaml:"env"`
	URL          string              `yaml:"url"`
	Headers      map[string]string   `yaml:"headers"`
	Timeout      time.Duration       `yaml:"timeout"`
	Health       *HealthConfig       `yaml:"health"`
	Prerequisite *PrerequisiteConfig `yaml:"prerequisite"`

	// RequiredKeys names the environment keys a caller must supply
	// (typically via secretref:) for this backend to function, surfaced
	// to agents through get_required_keys_for_tool. Distinct from Env's
	// own keys: a backend can declare a key here that it expects the
	// deployment to provide outside of this config file entirely.
	RequiredKeys []string `yaml:"required_keys"`
}

// PrerequisiteConfig names an external process a backend depends on
// being present before it is started. If a running process matches
// MatchPattern it's left alone; otherwise Command is spawned. Managed
// prerequisites are killed by process group at daemon shutdown.
type PrerequisiteConfig struct {
	MatchPattern string            `yaml:"match_pattern"`
	Managed      bool              `yaml:"managed"`
	Command      string            `yaml:"command"`
	Args         []string          `yaml:"args"`
	Env          map[string]string `yaml:"env"`
	Cwd          string            `yaml:"cwd"`
	StartupDelay time.Duration     `yaml:"startup_delay"`
}

// HealthConfig tunes the health supervisor's ping cadence and circuit
// breaker thresholds. ApplyDefaults fills in the documented defaults for
// any zero-valued field.
type HealthConfig struct {
	Interval         time.Duration `yaml:"interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
	RestartWindow    time.Duration `yaml:"restart_window"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
}

// SemanticConfig holds the semantic.model_path setting. The daemon
// builds its registry without an Embedder whatever ModelPath says, so
// search runs on BM25 alone.
type SemanticConfig struct {
	ModelPath string `yaml:"model_path"`
}

// SandboxConfig tunes the call_tool_chain scripting tier.
type SandboxConfig struct {
	MaxOutputSize int           `yaml:"max_output_size"`
	Timeout       time.Duration `yaml:"timeout"`
}

// SecretsConfig controls secretref resolution behavior.
type SecretsConfig struct {
	Strict          bool   `yaml:"strict"`
	KeychainService string `yaml:"keychain_service"`
	AWSSecrets      bool   `yaml:"aws_secrets_manager"`
}

// ExpandConfig controls ${VAR} expansion of config string values.
type ExpandConfig struct {
	Strict bool `yaml:"strict"`
}

// ApplyDefaults fills in documented defaults for zero-valued fields.
// The health.interval default is 30s, matching the YAML schema's
// documented default rather than the shorter value that appears in some
// prose descriptions of this system.
func (c *Config) ApplyDefaults() {
	c.Health.applyDefaults()
	for i := range c.Backends {
		if c.Backends[i].Timeout == 0 {
			c.Backends[i].Timeout = 30 * time.Second
		}
		if c.Backends[i].Health == nil {
			h := c.Health
			c.Backends[i].Health = &h
		} else {
			c.Backends[i].Health.applyDefaults()
		}
	}
	if c.Sandbox.MaxOutputSize == 0 {
		c.Sandbox.MaxOutputSize = 200_000
	}
	if c.Sandbox.Timeout == 0 {
		c.Sandbox.Timeout = 30 * time.Second
	}
	if c.MaxDynamicBackends == 0 {
		c.MaxDynamicBackends = 32
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (h *HealthConfig) applyDefaults() {
	if h.Interval == 0 {
		h.Interval = 30 * time.Second
	}
	if h.FailureThreshold == 0 {
		h.FailureThreshold = 3
	}
	if h.RestartWindow == 0 {
		h.RestartWindow = 5 * time.Minute
	}
	if h.InitialBackoff == 0 {
		h.InitialBackoff = 1 * time.Second
	}
	if h.MaxBackoff == 0 {
		h.MaxBackoff = 30 * time.Second
	}
}

// Parse decodes raw YAML bytes into a Config, applying documented
// defaults but not yet expanding variables or resolving secrets.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	return &c, nil
}

// Load reads the file at path and parses it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}
