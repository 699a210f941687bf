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
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeychainProvider resolves secretref:keychain:<account> against the
// host OS credential store (macOS Keychain, GNOME Keyring/KWallet via
// Secret Service, Windows Credential Manager).
type KeychainProvider struct {
	service string
}

// NewKeychainProvider returns a keychain provider storing entries under
// the given keychain "service" name.
func NewKeychainProvider(service string) *KeychainProvider {
	return &KeychainProvider{service: service}
}

// Name implements Provider.
func (*KeychainProvider) Name() string { return "keychain" }

// Resolve implements Provider.
func (k *KeychainProvider) Resolve(_ context.Context, reference string) (string, error) {
	val, err := keyring.Get(k.service, reference)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", reference, ErrNotFound)
		}
		return "", fmt.Errorf("keychain lookup %s: %w", reference, err)
	}
	return val, nil
}
