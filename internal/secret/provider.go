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

// Package secret resolves secretref:<provider>:<reference> placeholders
// in configuration values against a chain of pluggable backends.
package secret

import (
	"context"
	"errors"
)

// ErrProviderNotRegistered is returned when a reference names a provider
// alias that has no registered backend and no env fallback applies.
var ErrProviderNotRegistered = errors.New("secret provider not registered")

// ErrNotFound is returned when a provider recognizes the reference but
// has no value for it.
var ErrNotFound = errors.New("secret not found")

// Provider resolves a single secret reference to its value.
type Provider interface {
	// Name is the alias used in secretref:<name>:<reference>.
	Name() string
	// Resolve looks up reference and returns its plaintext value.
	Resolve(ctx context.Context, reference string) (string, error)
}
