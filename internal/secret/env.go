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
)

// EnvProvider resolves secretref:env:<VAR_NAME> against the process
// environment. The resolver's fallback for unregistered provider
// aliases does its own environment lookup and does not go through
// EnvProvider.
type EnvProvider struct{}

// NewEnvProvider returns the environment-variable provider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

// Name implements Provider.
func (*EnvProvider) Name() string { return "env" }

// Resolve implements Provider.
func (*EnvProvider) Resolve(_ context.Context, reference string) (string, error) {
	val, ok := os.LookupEnv(reference)
	if !ok {
		return "", fmt.Errorf("%s: %w", reference, ErrNotFound)
	}
	return val, nil
}
