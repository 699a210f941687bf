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
	"context"
	"fmt"
	"reflect"

	"github.com/gatemini/gatemini/internal/secret"
)

// ResolveSecrets walks every string field of cfg, replacing
// secretref:<provider>:<reference> occurrences with the value the
// resolver's provider chain returns for them.
func ResolveSecrets(ctx context.Context, cfg *Config, resolver *secret.Resolver) error {
	v := reflect.ValueOf(cfg).Elem()
	return resolveValue(ctx, v, resolver)
}

func resolveValue(ctx context.Context, v reflect.Value, resolver *secret.Resolver) error {
	switch v.Kind() {
	case reflect.String:
		if !v.CanSet() {
			return nil
		}
		resolved, err := resolver.Resolve(ctx, v.String())
		if err != nil {
			return fmt.Errorf("resolve secret: %w", err)
		}
		v.SetString(resolved)
		return nil
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return resolveValue(ctx, v.Elem(), resolver)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := resolveValue(ctx, v.Field(i), resolver); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := resolveValue(ctx, v.Index(i), resolver); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		for _, key := range v.MapKeys() {
			val := v.MapIndex(key)
			if val.Kind() == reflect.String {
				resolved, err := resolver.Resolve(ctx, val.String())
				if err != nil {
					return fmt.Errorf("resolve secret: %w", err)
				}
				v.SetMapIndex(key, reflect.ValueOf(resolved))
			}
		}
		return nil
	default:
		return nil
	}
}

// NewResolver builds the default provider chain: env is always
// registered, keychain is registered when a service name is configured,
// and AWS Secrets Manager is registered when enabled.
func NewResolver(ctx context.Context, cfg *Config) (*secret.Resolver, error) {
	r := secret.NewResolver()
	r.Register(secret.NewEnvProvider())

	if cfg.Secrets.KeychainService != "" {
		r.Register(secret.NewKeychainProvider(cfg.Secrets.KeychainService))
	}

	if cfg.Secrets.AWSSecrets {
		aws, err := secret.NewAWSSecretsProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("init aws secrets manager provider: %w", err)
		}
		r.Register(aws)
	}

	return r, nil
}
