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

package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// envLoadOnce guards environment-file loading so a hot-reload never
// re-reads or re-applies .env files, regardless of whether the host
// runtime would otherwise tolerate re-sourcing them.
var envLoadOnce sync.Once

// LoadEnvFiles loads KEY=VALUE pairs from up to three deduplicated
// locations into the process environment, without overwriting variables
// that are already set: $HOME/.gatemini.env, the platform config
// directory's .env, and a .env file sibling to configPath. Subsequent
// calls are no-ops; this stage runs exactly once per process regardless
// of how many times the config is reloaded.
func LoadEnvFiles(configPath string) {
	envLoadOnce.Do(func() {
		for _, p := range envFileCandidates(configPath) {
			loadEnvFile(p)
		}
	})
}

func envFileCandidates(configPath string) []string {
	var candidates []string
	seen := make(map[string]bool)

	add := func(p string) {
		if p == "" {
			return
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		candidates = append(candidates, p)
	}

	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".gatemini.env"))
	}
	if dir, err := ConfigDir(); err == nil {
		add(filepath.Join(dir, ".env"))
	}
	if configPath != "" {
		add(filepath.Join(filepath.Dir(configPath), ".env"))
	}

	return candidates
}

func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
}
