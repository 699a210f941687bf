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
	"fmt"
	"regexp"
	"strings"
)

var backendNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Validate checks structural and cross-field invariants that yaml
// decoding alone can't enforce: the backend name pattern, duplicate
// backend names, exactly one of command/url, and a health failure
// threshold of at least 1. Unresolved secretref literals are checked
// separately by ValidateNoUnresolvedSecrets.
func Validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Backends))
	var errs []string

	for _, b := range cfg.Backends {
		if !backendNamePattern.MatchString(b.Name) {
			errs = append(errs, fmt.Sprintf("backend %q: name must match %s", b.Name, backendNamePattern.String()))
			continue
		}
		if seen[b.Name] {
			errs = append(errs, fmt.Sprintf("backend %q: duplicate name", b.Name))
		}
		seen[b.Name] = true

		hasCommand := b.Command != ""
		hasURL := b.URL != ""
		switch {
		case hasCommand && hasURL:
			errs = append(errs, fmt.Sprintf("backend %q: exactly one of command or url must be set, not both", b.Name))
		case !hasCommand && !hasURL:
			errs = append(errs, fmt.Sprintf("backend %q: one of command or url must be set", b.Name))
		}

		if b.Health != nil && b.Health.FailureThreshold < 1 {
			errs = append(errs, fmt.Sprintf("backend %q: health.failure_threshold must be >= 1", b.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ValidateNoUnresolvedSecrets fails if any backend field still contains a
// secretref: literal after secret resolution has run; only meaningful
// when secrets.strict is enabled.
func ValidateNoUnresolvedSecrets(cfg *Config) error {
	var leftover []string
	check := func(where, value string) {
		if strings.Contains(value, "secretref:") {
			leftover = append(leftover, where)
		}
	}
	for _, b := range cfg.Backends {
		check(fmt.Sprintf("backends[%s].command", b.Name), b.Command)
		check(fmt.Sprintf("backends[%s].url", b.Name), b.URL)
		for k, v := range b.Env {
			check(fmt.Sprintf("backends[%s].env[%s]", b.Name, k), v)
		}
		for k, v := range b.Headers {
			check(fmt.Sprintf("backends[%s].headers[%s]", b.Name, k), v)
		}
	}
	if len(leftover) > 0 {
		return fmt.Errorf("unresolved secretref values in strict mode: %s", strings.Join(leftover, ", "))
	}
	return nil
}
