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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatemini/gatemini/internal/backend"
	"github.com/gatemini/gatemini/internal/registry"
	"github.com/gatemini/gatemini/internal/telemetry"
)

// Dispatcher implements metatool.ChainDispatcher: it decides, per call,
// which of call_tool_chain's three tiers serves code, and truncates
// whatever tier produces the final output.
type Dispatcher struct {
	engine        *backend.Engine
	bridge        *Bridge
	maxOutputSize int
}

// DispatcherConfig tunes a Dispatcher's output ceiling and the
// underlying scripting bridge.
type DispatcherConfig struct {
	// MaxOutputSize bounds call_tool_chain's result in characters
	// (default 200,000).
	MaxOutputSize int
	Bridge        BridgeConfig
}

// NewDispatcher creates a Dispatcher. engine and reg are shared by
// reference with the rest of the daemon; the scripting bridge built
// from them only runs for tier 3.
func NewDispatcher(engine *backend.Engine, reg *registry.Registry, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		engine:        engine,
		bridge:        NewBridge(engine, reg, nil, cfg.Bridge),
		maxOutputSize: cfg.MaxOutputSize,
	}
}

// directCall is the shape tier 1 recognizes: a JSON object naming a
// fully-qualified tool and its arguments. Jq, if set, is applied to the
// tool's decoded output before truncation — a jq-shaped escape hatch
// for trimming large results without a full expr-lang round trip.
type directCall struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
	Jq        string                 `json:"jq"`
}

var fastPathPattern = regexp.MustCompile(`(?s)^([A-Za-z_]\w*)\.([A-Za-z_]\w*)\((\{.*\})\)$`)

var (
	leadingConstPattern = regexp.MustCompile(`^\s*const\s+\w+\s*=\s*`)
	awaitKeywordPattern = regexp.MustCompile(`\bawait\b`)
	trailingReturnStmt  = regexp.MustCompile(`return\s+\w+\s*;?\s*$`)
	trailingSemicolons  = regexp.MustCompile(`;+\s*$`)
)

// Dispatch implements metatool.ChainDispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, code string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sandbox.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	out, err := d.dispatch(ctx, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, code string) (string, error) {
	if call, ok := parseDirectJSON(code); ok {
		out, err := d.invokeFiltered(ctx, call)
		if err != nil {
			return "", err
		}
		return truncateOutput(out, d.maxOutputSize), nil
	}

	if call, ok := parseFastPath(code); ok {
		out, err := d.invoke(ctx, call.backend, call.tool, call.arguments)
		if err != nil {
			return "", err
		}
		return truncateOutput(out, d.maxOutputSize), nil
	}

	value, err := d.bridge.Run(ctx, code)
	if err != nil {
		return "", err
	}
	out, err := formatSandboxValue(value)
	if err != nil {
		return "", err
	}
	return truncateOutput(out, d.maxOutputSize), nil
}

type resolvedCall struct {
	backend   string
	tool      string
	arguments map[string]interface{}
	jq        string
}

// parseDirectJSON implements tier 1: code parses as a JSON object with
// a string "tool" of the form backend.tool and an object "arguments".
func parseDirectJSON(code string) (resolvedCall, bool) {
	var dc directCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(code)), &dc); err != nil {
		return resolvedCall{}, false
	}
	backendName, toolName, ok := splitFQN(dc.Tool)
	if !ok {
		return resolvedCall{}, false
	}
	args := dc.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	return resolvedCall{backend: backendName, tool: toolName, arguments: args, jq: dc.Jq}, true
}

// parseFastPath implements tier 2: strip boilerplate, match the single-
// call expression pattern, and parse its object literal as JSON.
func parseFastPath(code string) (resolvedCall, bool) {
	stripped := stripBoilerplate(code)
	m := fastPathPattern.FindStringSubmatch(stripped)
	if m == nil {
		return resolvedCall{}, false
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(m[3]), &args); err != nil {
		return resolvedCall{}, false
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return resolvedCall{backend: m[1], tool: m[2], arguments: args}, true
}

func stripBoilerplate(code string) string {
	s := strings.TrimSpace(code)
	s = leadingConstPattern.ReplaceAllString(s, "")
	s = awaitKeywordPattern.ReplaceAllString(s, "")
	s = trailingReturnStmt.ReplaceAllString(s, "")
	s = trailingSemicolons.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func splitFQN(fqn string) (backendName, toolName string, ok bool) {
	i := strings.IndexByte(fqn, '.')
	if i <= 0 || i == len(fqn)-1 {
		return "", "", false
	}
	return fqn[:i], fqn[i+1:], true
}

func (d *Dispatcher) invoke(ctx context.Context, backendName, toolName string, args map[string]interface{}) (string, error) {
	value, err := d.invokeValue(ctx, backendName, toolName, args)
	if err != nil {
		return "", err
	}
	return formatSandboxValue(value)
}

func (d *Dispatcher) invokeValue(ctx context.Context, backendName, toolName string, args map[string]interface{}) (interface{}, error) {
	resp, err := d.engine.CallTool(ctx, backendName, backend.ToolCallRequest{Name: toolName, Arguments: args})
	if err != nil {
		return nil, err
	}
	return decodeToolCallResponse(resp)
}

// invokeFiltered runs call's tool and, if call.jq is set, pipes the
// decoded result through it before formatting — tier 1's jq escape
// hatch for shaping output ahead of truncation.
func (d *Dispatcher) invokeFiltered(ctx context.Context, call resolvedCall) (string, error) {
	value, err := d.invokeValue(ctx, call.backend, call.tool, call.arguments)
	if err != nil {
		return "", err
	}
	if call.jq != "" {
		value, err = jqFilter(ctx, call.jq, value)
		if err != nil {
			return "", err
		}
	}
	return formatSandboxValue(value)
}

// formatSandboxValue renders a dispatch result as call_tool_chain's
// text output: strings pass through unchanged, everything else
// (decoded JSON from a tool's content, or an expr expression's result)
// is re-encoded as JSON.
func formatSandboxValue(value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode sandbox result: %w", err)
	}
	return string(data), nil
}
