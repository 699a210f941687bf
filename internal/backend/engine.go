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

// Package backend supervises the set of MCP backends gatemini aggregates:
// starting each one, pinging it on a schedule, tripping a circuit when it
// stops answering, and restarting it with exponential backoff.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatemini/gatemini/internal/telemetry"
)

// BackendState is the lifecycle state of a supervised backend.
type BackendState string

const (
	BackendStarting  BackendState = "starting"
	BackendHealthy   BackendState = "healthy"
	BackendUnhealthy BackendState = "unhealthy"
	BackendStopped   BackendState = "stopped"
)

// HealthPolicy tunes one backend's ping cadence and circuit breaker
// thresholds. A zero value is invalid; ApplyDefaults fills it in.
type HealthPolicy struct {
	Interval         time.Duration
	FailureThreshold int
	RestartWindow    time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

// ApplyDefaults fills in the documented defaults for any zero field.
func (p *HealthPolicy) ApplyDefaults() {
	if p.Interval == 0 {
		p.Interval = 30 * time.Second
	}
	if p.FailureThreshold == 0 {
		p.FailureThreshold = 3
	}
	if p.RestartWindow == 0 {
		p.RestartWindow = 5 * time.Minute
	}
	if p.InitialBackoff == 0 {
		p.InitialBackoff = time.Second
	}
	if p.MaxBackoff == 0 {
		p.MaxBackoff = 30 * time.Second
	}
}

var backendNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// peerState tracks one backend's runtime state alongside its Peer.
type peerState struct {
	config ServerConfig
	health HealthPolicy
	peer   Peer
	dynamic bool

	// registrationToken identifies a dynamic backend's registration call
	// for audit logging; empty for statically configured backends.
	registrationToken string

	mu           sync.RWMutex
	state        BackendState
	circuitUntil time.Time
	failureCount int
	lastFailure  time.Time
	lastError    string
	startedAt    time.Time
	toolCount    *int

	inFlight int64

	stopCh    chan struct{}
	restartCh chan struct{}
}

// CallGuard tracks one in-flight call against a backend for the
// duration of its defer scope, including the panic-unwind path.
type CallGuard struct {
	counter *int64
}

func newCallGuard(counter *int64) *CallGuard {
	atomic.AddInt64(counter, 1)
	return &CallGuard{counter: counter}
}

// Release decrements the in-flight counter. Safe to call from a deferred
// recover() block as well as the normal return path.
func (g *CallGuard) Release() {
	atomic.AddInt64(g.counter, -1)
}

// Status is the externally visible snapshot of a backend's state.
type Status struct {
	Name         string
	State        BackendState
	InFlight     int64
	FailureCount int
	LastError    string
	StartedAt    *time.Time
	ToolCount    *int
	Dynamic      bool
}

// Engine supervises a set of MCP backends: starting, health-checking,
// restarting, and dispatching tool calls to them.
type Engine struct {
	peers        *shardedPeerMap
	logger       *slog.Logger
	emitter      *EventEmitter
	maxDynamic   int
	dynamicCount atomic.Int64
	draining     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// EngineConfig configures a new Engine.
type EngineConfig struct {
	Logger             *slog.Logger
	MaxDynamicBackends int
}

// NewEngine creates an Engine with no backends registered yet.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxDynamic := cfg.MaxDynamicBackends
	if maxDynamic == 0 {
		maxDynamic = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		peers:      newShardedPeerMap(),
		logger:     logger,
		emitter:    NewEventEmitter(logger),
		maxDynamic: maxDynamic,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AddBackend registers a backend and starts its supervisor goroutine.
// dynamic backends registered at runtime (rather than from the config
// file at startup) count against MaxDynamicBackends.
func (e *Engine) AddBackend(config ServerConfig, health HealthPolicy, dynamic bool) error {
	if !backendNamePattern.MatchString(config.Name) {
		return fmt.Errorf("invalid backend name %q", config.Name)
	}
	if _, exists := e.peers.Get(config.Name); exists {
		return fmt.Errorf("backend %s already registered", config.Name)
	}
	if dynamic {
		if e.dynamicCount.Load() >= int64(e.maxDynamic) {
			return fmt.Errorf("dynamic backend limit reached (%d)", e.maxDynamic)
		}
	}

	peer, err := NewPeer(config)
	if err != nil {
		return err
	}

	health.ApplyDefaults()
	st := &peerState{
		config:    config,
		health:    health,
		peer:      peer,
		dynamic:   dynamic,
		state:     BackendStopped,
		stopCh:    make(chan struct{}),
		restartCh: make(chan struct{}, 1),
	}
	if dynamic {
		st.registrationToken = uuid.NewString()
	}
	e.peers.Set(config.Name, st)
	if dynamic {
		e.dynamicCount.Add(1)
	}

	e.wg.Add(1)
	go e.monitorPeer(st)

	e.logger.Info("backend registered", "backend", config.Name, "dynamic", dynamic, "registration_token", st.registrationToken)
	return nil
}

// RegistrationToken returns the audit token assigned when name was
// registered dynamically. It is empty, ok false for backends declared
// in the static config file or names that don't exist.
func (e *Engine) RegistrationToken(name string) (string, bool) {
	st, exists := e.peers.Get(name)
	if !exists || !st.dynamic {
		return "", false
	}
	return st.registrationToken, true
}

// ErrBackendProtected is returned by DeregisterDynamic when asked to
// remove a backend that was declared in the static config file rather
// than registered at runtime.
var ErrBackendProtected = fmt.Errorf("backend is protected (declared in static config)")

// DeregisterDynamic removes a runtime-registered backend. Backends
// declared in the static config file are protected from this path;
// only config hot-reload may remove them.
func (e *Engine) DeregisterDynamic(name string) error {
	st, ok := e.peers.Get(name)
	if !ok {
		return fmt.Errorf("backend not found: %s", name)
	}
	if !st.dynamic {
		return ErrBackendProtected
	}
	return e.RemoveBackend(name)
}

// RemoveBackend stops and unregisters a backend.
func (e *Engine) RemoveBackend(name string) error {
	st, ok := e.peers.Get(name)
	if !ok {
		return fmt.Errorf("backend not found: %s", name)
	}
	e.peers.Delete(name)
	close(st.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = st.peer.Stop(ctx)

	if st.dynamic {
		e.dynamicCount.Add(-1)
	}
	e.emitter.EmitStopped(name)
	return nil
}

// CallTool dispatches a tool call to the named backend, refusing the call
// while its circuit is open.
func (e *Engine) CallTool(ctx context.Context, name string, req ToolCallRequest) (*ToolCallResponse, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "backend.call_tool",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gatemini.backend", name),
			attribute.String("gatemini.tool", req.Name),
		),
	)
	defer span.End()

	resp, err := e.callTool(ctx, name, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

// retryDelays are the Starting-state backoff waits a call rides out
// before giving up: 500ms, 1s, 2s.
var retryDelays = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

// callTool waits out a backend that is still Starting (up to the
// retryDelays schedule) but never calls a backend that is Unhealthy or
// Stopped: a backend in either of those states cannot satisfy a call
// without an intervening Healthy transition from the health monitor,
// regardless of whether its circuit window has since elapsed.
func (e *Engine) callTool(ctx context.Context, name string, req ToolCallRequest) (*ToolCallResponse, error) {
	st, ok := e.peers.Get(name)
	if !ok {
		return nil, fmt.Errorf("backend not found: %s", name)
	}

	state := st.currentState()
	for attempt := 0; state == BackendStarting && attempt < len(retryDelays); attempt++ {
		select {
		case <-time.After(retryDelays[attempt]):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		state = st.currentState()
	}

	switch state {
	case BackendHealthy:
	case BackendStarting:
		return nil, fmt.Errorf("backend %s is still starting (retried %d times)", name, len(retryDelays))
	default:
		return nil, fmt.Errorf("backend %s is not available (state: %s)", name, state)
	}

	if e.draining.Load() {
		return nil, fmt.Errorf("engine is shutting down, refusing new calls")
	}

	guard := newCallGuard(&st.inFlight)
	defer func() {
		if r := recover(); r != nil {
			guard.Release()
			panic(r)
		}
		guard.Release()
	}()

	return st.peer.CallTool(ctx, req)
}

func (st *peerState) currentState() BackendState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}

// DiscoverTools lists the tools the named backend currently exposes.
func (e *Engine) DiscoverTools(ctx context.Context, name string) ([]ToolDefinition, error) {
	st, ok := e.peers.Get(name)
	if !ok {
		return nil, fmt.Errorf("backend not found: %s", name)
	}
	tools, err := st.peer.DiscoverTools(ctx)
	if err != nil {
		return nil, err
	}
	count := len(tools)
	st.mu.Lock()
	st.toolCount = &count
	st.mu.Unlock()
	return tools, nil
}

// RequiredKeys returns the environment keys the named backend's config
// declares as required, distinct from the Env keys already baked into
// its process or request headers.
func (e *Engine) RequiredKeys(name string) ([]string, error) {
	st, ok := e.peers.Get(name)
	if !ok {
		return nil, fmt.Errorf("backend not found: %s", name)
	}
	return st.config.RequiredKeys, nil
}

// BackendNames returns every registered backend name.
func (e *Engine) BackendNames() []string {
	return e.peers.Names()
}

// Events returns the engine's event emitter so callers (the session
// layer, in particular) can subscribe to backend lifecycle events
// without the engine needing to know about MCP notifications itself.
func (e *Engine) Events() *EventEmitter {
	return e.emitter
}

// GetStatus returns a snapshot of one backend's state.
func (e *Engine) GetStatus(name string) (Status, error) {
	st, ok := e.peers.Get(name)
	if !ok {
		return Status{}, fmt.Errorf("backend not found: %s", name)
	}
	return st.snapshot(), nil
}

// ListStatus returns a snapshot of every registered backend's state.
func (e *Engine) ListStatus() []Status {
	names := e.peers.Names()
	out := make([]Status, 0, len(names))
	for _, name := range names {
		if st, ok := e.peers.Get(name); ok {
			out = append(out, st.snapshot())
		}
	}
	return out
}

func (st *peerState) snapshot() Status {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s := Status{
		Name:         st.config.Name,
		State:        st.state,
		InFlight:     atomic.LoadInt64(&st.inFlight),
		FailureCount: st.failureCount,
		LastError:    st.lastError,
		ToolCount:    st.toolCount,
		Dynamic:      st.dynamic,
	}
	if !st.startedAt.IsZero() {
		t := st.startedAt
		s.StartedAt = &t
	}
	return s
}

// Restart triggers a restart of the named backend outside its normal
// health-driven cycle.
func (e *Engine) Restart(name string) error {
	st, ok := e.peers.Get(name)
	if !ok {
		return fmt.Errorf("backend not found: %s", name)
	}
	select {
	case st.restartCh <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("restart already pending for backend: %s", name)
	}
}

// Close stops every backend and shuts the engine down.
func (e *Engine) Close() error {
	e.cancel()
	for _, name := range e.peers.Names() {
		_ = e.RemoveBackend(name)
	}
	e.wg.Wait()
	return nil
}

// InFlight returns the total number of backend calls currently in
// flight across every registered peer.
func (e *Engine) InFlight() int64 {
	var total int64
	for _, name := range e.peers.Names() {
		if st, ok := e.peers.Get(name); ok {
			total += atomic.LoadInt64(&st.inFlight)
		}
	}
	return total
}

// StopAll refuses any new backend call, waits for every in-flight call
// to drain to zero (or ctx to expire, whichever comes first), and then
// closes the engine. After it returns, InFlight() is guaranteed to be
// zero; if ctx expired first, the remaining in-flight calls are
// abandoned rather than awaited further.
func (e *Engine) StopAll(ctx context.Context) error {
	e.draining.Store(true)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var drainErr error
drain:
	for e.InFlight() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			drainErr = fmt.Errorf("in-flight calls did not drain: %w", ctx.Err())
			break drain
		}
	}

	if err := e.Close(); err != nil {
		return err
	}
	return drainErr
}
