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

package secret

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// refPattern matches secretref:<provider>:<reference>. The reference may
// contain any character except whitespace; providers interpret it.
var refPattern = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// fullValuePattern is refPattern anchored to the whole string, used to
// distinguish "the entire value is a secret reference" from "a reference
// appears inline within a larger string".
var fullValuePattern = regexp.MustCompile(`^secretref:([^:\s]+):(\S+)$`)

// Resolver resolves secretref placeholders against a chain of named
// providers, falling back to environment variables for any provider
// alias that has no registered backend.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver builds a resolver with no providers registered; callers
// add providers with Register before calling Resolve.
func NewResolver() *Resolver {
	return &Resolver{providers: make(map[string]Provider)}
}

// Register adds or replaces the provider for its own Name().
func (r *Resolver) Register(p Provider) {
	r.providers[p.Name()] = p
}

// IsReference reports whether s is, in its entirety, a secretref placeholder.
func IsReference(s string) bool {
	return fullValuePattern.MatchString(s)
}

// Resolve expands every secretref:<provider>:<reference> occurrence in s.
// When s is wholly a single reference the resolved value is returned
// as-is (full-value mode); otherwise each occurrence is substituted
// in place (inline mode).
func (r *Resolver) Resolve(ctx context.Context, s string) (string, error) {
	if m := fullValuePattern.FindStringSubmatch(s); m != nil {
		return r.resolveOne(ctx, m[1], m[2])
	}

	var resolveErr error
	out := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}
		m := refPattern.FindStringSubmatch(match)
		val, err := r.resolveOne(ctx, m[1], m[2])
		if err != nil {
			resolveErr = err
			return match
		}
		return val
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, providerName, reference string) (string, error) {
	if p, ok := r.providers[providerName]; ok {
		val, err := p.Resolve(ctx, reference)
		if err != nil {
			return "", fmt.Errorf("resolve secretref:%s:%s: %w", providerName, reference, err)
		}
		return val, nil
	}

	// No registered provider for this alias: fall back to treating the
	// last path segment of the reference as an environment variable name.
	parts := strings.Split(reference, "/")
	envVar := parts[len(parts)-1]
	val, ok := os.LookupEnv(envVar)
	if !ok {
		return "", fmt.Errorf("resolve secretref:%s:%s: %w", providerName, reference, ErrProviderNotRegistered)
	}
	return val, nil
}
