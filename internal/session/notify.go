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
	"github.com/mark3labs/mcp-go/server"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/registry"
)

const (
	toolsListChangedMethod     = "notifications/tools/list_changed"
	resourcesListChangedMethod = "notifications/resources/list_changed"
)

// WireNotifications subscribes mcpServer to backend lifecycle events and
// registry mutations, broadcasting list_changed notifications to every
// live session so agents re-run search_tools instead of caching a now-
// stale view of what's connected. Call once at startup, after the
// engine and registry are constructed and before the daemon starts
// accepting connections.
func WireNotifications(mcpServer *server.MCPServer, engine *backend.Engine, reg *registry.Registry) {
	engine.Events().Subscribe(func(event backend.MCPServerEvent) {
		switch event.Type {
		case backend.EventStarted, backend.EventStopped, backend.EventToolsChanged:
			notifyToolsChanged(mcpServer)
		}
	})

	reg.OnMutate(func() {
		notifyToolsChanged(mcpServer)
	})
}

func notifyToolsChanged(mcpServer *server.MCPServer) {
	mcpServer.SendNotificationToAllClients(toolsListChangedMethod, nil)
	mcpServer.SendNotificationToAllClients(resourcesListChangedMethod, nil)
}
