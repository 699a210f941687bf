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

	"github.com/gatemini/gatemini/internal/registry"
)

// toolInterface is the shape __getToolInterface and __interfaces expose
// for one tool: enough for generated code to introspect a call before
// making it.
type toolInterface struct {
	Backend     string `expr:"backend"`
	Tool        string `expr:"tool"`
	Description string `expr:"description"`
}

// buildPreamble constructs the expr env for one invocation: one
// sanitized-name entry per backend, each a map of sanitized tool names
// to call closures, plus __interfaces and __getToolInterface. callTool
// is the bridge's dispatch-to-engine function; it closes over the
// invocation's context so generated closures need no extra arguments.
func buildPreamble(ctx context.Context, tools []registry.ToolDescriptor, callTool func(ctx context.Context, backendName, toolName string, args map[string]interface{}) (interface{}, error)) map[string]interface{} {
	env := make(map[string]interface{})
	byBackend := make(map[string]map[string]interface{})
	interfaces := make(map[string][]toolInterface)

	for _, t := range tools {
		backendKey := sanitizeIdentifier(t.Backend)
		toolKey := sanitizeIdentifier(t.Name)

		backendName, toolName := t.Backend, t.Name // closure-captured, never sanitized
		wrapper := func(args map[string]interface{}) interface{} {
			result, err := callTool(ctx, backendName, toolName, args)
			if err != nil {
				panic(&dispatchPanic{err: err})
			}
			return result
		}

		members := byBackend[backendKey]
		if members == nil {
			members = make(map[string]interface{})
			byBackend[backendKey] = members
		}
		members[toolKey] = wrapper

		interfaces[t.Backend] = append(interfaces[t.Backend], toolInterface{
			Backend: t.Backend, Tool: t.Name, Description: t.Description,
		})
	}

	for backendKey, members := range byBackend {
		env[backendKey] = members
	}

	env["__interfaces"] = interfaces
	env["__getToolInterface"] = func(name string) interface{} {
		for _, t := range tools {
			if t.FQN() == name || t.Name == name {
				return toolInterface{Backend: t.Backend, Tool: t.Name, Description: t.Description}
			}
		}
		return nil
	}

	return env
}

// dispatchPanic carries a call failure across the expr.Run boundary; the
// bridge recovers it and surfaces a plain error rather than a panic.
type dispatchPanic struct {
	err error
}

func (p *dispatchPanic) String() string {
	return fmt.Sprintf("tool call failed: %v", p.err)
}
