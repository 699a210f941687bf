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

// Package sandbox implements call_tool_chain's three-tier dispatcher and
// the scripting bridge its third tier falls back to. Spec.md describes a
// non-thread-mobile JS isolate; no JS engine for Go is available in the
// example pack this project was grounded on, so the bridge substitutes
// github.com/expr-lang/expr while keeping the isolate's architectural
// properties: a dedicated OS thread per invocation, a generated preamble
// of per-backend tool closures, and a single outbound capability
// (__call_tool) mediated entirely by the backend engine. See DESIGN.md.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/registry"
	gateminierrors "github.com/gatemini/gatemini/pkg/errors"
)

// sandboxCreations counts expr-VM invocations. It stays at zero for
// call_tool_chain calls served entirely by tier 1 (direct JSON) or tier 2
// (regex fast path), giving tests a cheap assertion hook that no
// sandbox was constructed for those paths.
var sandboxCreations atomic.Int64

// SandboxCreations reports how many scripting-sandbox invocations have
// run since process start.
func SandboxCreations() int64 {
	return sandboxCreations.Load()
}

// Bridge evaluates call_tool_chain snippets that need more than a
// single direct call: a compiled expr program, run on its own
// OS-thread-pinned goroutine, against an env built fresh per invocation
// from the registry's current tool set.
type Bridge struct {
	engine   *backend.Engine
	registry *registry.Registry
	logger   *slog.Logger

	wallClock time.Duration

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// BridgeConfig tunes a Bridge's resource limits.
type BridgeConfig struct {
	// WallClock bounds one invocation's total running time (default 30s).
	WallClock time.Duration
}

// NewBridge creates a Bridge sharing engine and registry with the rest
// of the daemon.
func NewBridge(engine *backend.Engine, reg *registry.Registry, logger *slog.Logger, cfg BridgeConfig) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	wallClock := cfg.WallClock
	if wallClock <= 0 {
		wallClock = 30 * time.Second
	}
	return &Bridge{
		engine:    engine,
		registry:  reg,
		logger:    logger,
		wallClock: wallClock,
		cache:     make(map[string]*vm.Program),
	}
}

// invocationResult is delivered across the bridge's one-shot channel
// from the dedicated OS thread back to the caller's goroutine.
type invocationResult struct {
	value interface{}
	err   error
}

// Run compiles and evaluates code against a preamble built from the
// registry's current tools, on a dedicated OS thread. It blocks until
// the invocation completes, the context is cancelled, or WallClock
// elapses, whichever comes first.
func (b *Bridge) Run(ctx context.Context, code string) (interface{}, error) {
	sandboxCreations.Add(1)

	program, err := b.compile(code)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.wallClock)
	defer cancel()

	resultCh := make(chan invocationResult, 1)
	label := fmt.Sprintf("sandbox-%d", sandboxCreations.Load())

	go b.runOnDedicatedThread(ctx, label, program, resultCh)

	select {
	case res := <-resultCh:
		return res.value, res.err
	case <-ctx.Done():
		return nil, &gateminierrors.TimeoutError{Operation: "call_tool_chain sandbox", Duration: b.wallClock, Cause: ctx.Err()}
	}
}

// runOnDedicatedThread locks the calling goroutine to its OS thread for
// its entire lifetime, matching the JS isolate's true thread affinity
// even though expr's VM has no such requirement itself.
func (b *Bridge) runOnDedicatedThread(ctx context.Context, label string, program *vm.Program, resultCh chan<- invocationResult) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger := b.logger.With("sandbox_thread", label)
	logger.Debug("sandbox invocation starting")
	defer logger.Debug("sandbox invocation finished")

	env := buildPreamble(ctx, b.registry.Snapshot(), b.callTool)

	defer func() {
		if r := recover(); r != nil {
			if dp, ok := r.(*dispatchPanic); ok {
				resultCh <- invocationResult{err: dp.err}
				return
			}
			resultCh <- invocationResult{err: fmt.Errorf("sandbox panic: %v", r)}
		}
	}()

	value, err := expr.Run(program, env)
	if err != nil {
		resultCh <- invocationResult{err: &gateminierrors.ValidationError{
			Field:      "code",
			Message:    err.Error(),
			Suggestion: "call_tool_chain's scripting tier accepts a single expression; multi-statement snippets are not supported",
		}}
		return
	}
	resultCh <- invocationResult{value: value}
}

// callTool is the bridge's one outbound capability: every generated
// closure in the preamble funnels here, which in turn calls the shared
// backend engine. No filesystem, network, environment, or process
// capability is ever placed in the env.
func (b *Bridge) callTool(ctx context.Context, backendName, toolName string, args map[string]interface{}) (interface{}, error) {
	resp, err := b.engine.CallTool(ctx, backendName, backend.ToolCallRequest{Name: toolName, Arguments: args})
	if err != nil {
		return nil, err
	}
	return decodeToolCallResponse(resp)
}

// compile compiles code and caches the *vm.Program by source text.
func (b *Bridge) compile(code string) (*vm.Program, error) {
	b.mu.RLock()
	if prog, ok := b.cache[code]; ok {
		b.mu.RUnlock()
		return prog, nil
	}
	b.mu.RUnlock()

	prog, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &gateminierrors.ValidationError{
			Field:      "code",
			Message:    fmt.Sprintf("failed to compile: %s", err.Error()),
			Suggestion: "call_tool_chain's scripting tier accepts a single expr-lang expression",
		}
	}

	b.mu.Lock()
	b.cache[code] = prog
	b.mu.Unlock()
	return prog, nil
}

// decodeToolCallResponse folds a backend's tool result into a plain Go
// value usable from expr: JSON content decodes to its native shape,
// everything else returns as joined text. An error result becomes a Go
// error rather than a value, so expr code never has to check IsError.
func decodeToolCallResponse(resp *backend.ToolCallResponse) (interface{}, error) {
	var text string
	for _, item := range resp.Content {
		if item.Type == "text" {
			text += item.Text
		}
	}

	if resp.IsError {
		if text == "" {
			text = "tool call failed"
		}
		return nil, fmt.Errorf("%s", text)
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded, nil
	}
	return text, nil
}
