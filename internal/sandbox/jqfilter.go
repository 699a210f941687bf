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

package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

// jqTimeout bounds how long a single jq filter is allowed to run
// against a tool's decoded output before the direct-call tier gives up.
const jqTimeout = 1 * time.Second

// jqFilter compiles jqExpr once and applies it to value, returning
// either the single result or, when the expression produces more than
// one value, the results as a slice. An empty expression is a no-op.
func jqFilter(ctx context.Context, jqExpr string, value interface{}) (interface{}, error) {
	if jqExpr == "" {
		return value, nil
	}

	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return nil, fmt.Errorf("jq filter: parse: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq filter: compile: %w", err)
	}

	filterCtx, cancel := context.WithTimeout(ctx, jqTimeout)
	defer cancel()

	resultCh := make(chan interface{}, 1)
	errCh := make(chan error, 1)
	go func() {
		iter := code.Run(value)
		var results []interface{}
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errCh <- err
				return
			}
			results = append(results, v)
		}
		switch len(results) {
		case 0:
			resultCh <- nil
		case 1:
			resultCh <- results[0]
		default:
			resultCh <- results
		}
	}()

	select {
	case result := <-resultCh:
		return result, nil
	case err := <-errCh:
		return nil, fmt.Errorf("jq filter: %w", err)
	case <-filterCtx.Done():
		return nil, fmt.Errorf("jq filter: timed out after %s", jqTimeout)
	}
}
