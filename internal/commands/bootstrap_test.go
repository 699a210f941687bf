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

package commands

import (
	"context"
	"testing"
)

func TestBootstrap_NoConfigPathUsesDefaults(t *testing.T) {
	comps, err := bootstrap(context.Background(), "")
	if err != nil {
		t.Fatalf("bootstrap() error = %v", err)
	}
	defer comps.Close()

	if comps.Registry == nil || comps.Engine == nil || comps.Server == nil {
		t.Fatal("bootstrap() left a required component nil")
	}
	if comps.Config.Sandbox.MaxOutputSize != 200_000 {
		t.Errorf("Sandbox.MaxOutputSize = %d, want default 200000", comps.Config.Sandbox.MaxOutputSize)
	}
}
