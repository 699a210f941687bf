package backend

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakePeer is a minimal Peer for exercising the engine without a real
// MCP connection.
type fakePeer struct {
	name      string
	startErr  error
	pingErr   func() error
	tools     []ToolDefinition
	callCount int
}

func (p *fakePeer) Name() string { return p.name }
func (p *fakePeer) Start(ctx context.Context) error { return p.startErr }
func (p *fakePeer) Stop(ctx context.Context) error  { return nil }
func (p *fakePeer) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error) {
	p.callCount++
	return &ToolCallResponse{Content: []ContentItem{{Type: "text", Text: "ok"}}}, nil
}
func (p *fakePeer) Ping(ctx context.Context) error {
	if p.pingErr != nil {
		return p.pingErr()
	}
	return nil
}
func (p *fakePeer) DiscoverTools(ctx context.Context) ([]ToolDefinition, error) {
	return p.tools, nil
}
func (p *fakePeer) Exited() <-chan struct{} { return nil }

func newEngineWithFakePeer(t *testing.T, name string, peer Peer) (*Engine, *peerState) {
	t.Helper()
	e := NewEngine(EngineConfig{MaxDynamicBackends: 4})
	st := &peerState{
		config:    ServerConfig{Name: name},
		health:    HealthPolicy{Interval: time.Hour, FailureThreshold: 2},
		peer:      peer,
		state:     BackendHealthy,
		stopCh:    make(chan struct{}),
		restartCh: make(chan struct{}, 1),
	}
	st.health.ApplyDefaults()
	e.peers.Set(name, st)
	return e, st
}

func TestEngine_AddBackend_InvalidName(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Close()

	err := e.AddBackend(ServerConfig{Name: "bad name!"}, HealthPolicy{}, false)
	if err == nil {
		t.Fatal("expected error for invalid backend name")
	}
}

func TestEngine_AddBackend_RequiresCommandOrURL(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Close()

	err := e.AddBackend(ServerConfig{Name: "valid"}, HealthPolicy{}, false)
	if err == nil {
		t.Fatal("expected error when neither command nor url is set")
	}
}

func TestEngine_AddBackend_DynamicQuota(t *testing.T) {
	e := NewEngine(EngineConfig{MaxDynamicBackends: 1})
	defer e.Close()

	if err := e.AddBackend(ServerConfig{Name: "one", Command: "true"}, HealthPolicy{}, true); err != nil {
		t.Fatalf("first dynamic backend: %v", err)
	}
	if err := e.AddBackend(ServerConfig{Name: "two", Command: "true"}, HealthPolicy{}, true); err == nil {
		t.Fatal("expected quota error for second dynamic backend")
	}
}

func TestEngine_RegistrationToken_SetOnlyForDynamicBackends(t *testing.T) {
	e := NewEngine(EngineConfig{MaxDynamicBackends: 2})
	defer e.Close()

	if err := e.AddBackend(ServerConfig{Name: "dyn", Command: "true"}, HealthPolicy{}, true); err != nil {
		t.Fatalf("add dynamic backend: %v", err)
	}
	if err := e.AddBackend(ServerConfig{Name: "static", Command: "true"}, HealthPolicy{}, false); err != nil {
		t.Fatalf("add static backend: %v", err)
	}

	token, ok := e.RegistrationToken("dyn")
	if !ok || token == "" {
		t.Error("RegistrationToken(dyn) should return a non-empty token")
	}

	if _, ok := e.RegistrationToken("static"); ok {
		t.Error("RegistrationToken(static) should report ok=false for a statically configured backend")
	}

	if _, ok := e.RegistrationToken("missing"); ok {
		t.Error("RegistrationToken(missing) should report ok=false for an unknown name")
	}
}

func TestEngine_CallTool_Dispatches(t *testing.T) {
	peer := &fakePeer{name: "svc"}
	e, _ := newEngineWithFakePeer(t, "svc", peer)

	resp, err := e.CallTool(context.Background(), "svc", ToolCallRequest{Name: "x"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if resp.Content[0].Text != "ok" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if peer.callCount != 1 {
		t.Errorf("callCount = %d, want 1", peer.callCount)
	}
}

func TestEngine_CallTool_CircuitOpenRefuses(t *testing.T) {
	peer := &fakePeer{name: "svc"}
	e, st := newEngineWithFakePeer(t, "svc", peer)

	st.mu.Lock()
	st.state = BackendUnhealthy
	st.circuitUntil = time.Now().Add(time.Minute)
	st.mu.Unlock()

	_, err := e.CallTool(context.Background(), "svc", ToolCallRequest{Name: "x"})
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
}

func TestEngine_RecordFailure_TripsCircuitAtThreshold(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Close()

	st := &peerState{
		config: ServerConfig{Name: "svc"},
		health: HealthPolicy{Interval: time.Second, FailureThreshold: 2},
	}

	if tripped := e.recordFailure(st, errors.New("ping timeout")); tripped {
		t.Fatal("circuit should not trip on first failure")
	}
	if tripped := e.recordFailure(st, errors.New("ping timeout")); !tripped {
		t.Fatal("circuit should trip once failureCount reaches threshold")
	}
	if st.state != BackendUnhealthy {
		t.Errorf("state = %v, want unhealthy", st.state)
	}
}

func TestPeerState_RecoveredFromFailure(t *testing.T) {
	st := &peerState{state: BackendUnhealthy, failureCount: 3}
	if !st.recoveredFromFailure() {
		t.Fatal("expected recovery to report a transition")
	}
	if st.failureCount != 0 {
		t.Errorf("failureCount = %d, want 0", st.failureCount)
	}
	if st.recoveredFromFailure() {
		t.Fatal("second call with no intervening failure should report no transition")
	}
}

func TestCalculateBackoff_ExponentialWithCap(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Close()

	st := &peerState{health: HealthPolicy{InitialBackoff: time.Second, MaxBackoff: 30 * time.Second}}

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{5, 16 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tc := range cases {
		st.failureCount = tc.failures
		if got := e.calculateBackoff(st); got != tc.want {
			t.Errorf("calculateBackoff(failures=%d) = %v, want %v", tc.failures, got, tc.want)
		}
	}
}
