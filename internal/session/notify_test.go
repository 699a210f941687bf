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

package session

import (
	"testing"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/registry"
)

func TestWireNotifications_RegistryMutationDoesNotPanic(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "0.0.1", server.WithToolCapabilities(true))
	engine := backend.NewEngine(backend.EngineConfig{})
	defer engine.Close()
	reg := registry.NewRegistry(nil)

	WireNotifications(mcpServer, engine, reg)

	reg.UpsertBackendTools("docs", []registry.ToolDescriptor{
		{Name: "search", Backend: "docs", Description: "search docs"},
	})
	reg.RemoveBackend("docs")
}
