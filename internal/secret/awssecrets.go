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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWSSecretsProvider resolves secretref:aws:<secret-id> against AWS
// Secrets Manager, using whatever credential chain the environment
// already provides (profile, instance role, env vars).
type AWSSecretsProvider struct {
	client *secretsmanager.Client
}

// NewAWSSecretsProvider loads the default AWS config for region/creds
// and returns a provider backed by Secrets Manager.
func NewAWSSecretsProvider(ctx context.Context) (*AWSSecretsProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &AWSSecretsProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// Name implements Provider.
func (*AWSSecretsProvider) Name() string { return "aws" }

// Resolve implements Provider.
func (a *AWSSecretsProvider) Resolve(ctx context.Context, reference string) (string, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &reference,
	})
	if err != nil {
		return "", fmt.Errorf("aws secrets manager lookup %s: %w", reference, err)
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return "", fmt.Errorf("%s: %w", reference, ErrNotFound)
}
