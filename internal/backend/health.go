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

// Backend health monitoring: starts each peer, pings it on a staggered
// schedule, trips a circuit after consecutive failures, and restarts it
// with exponential backoff.
package backend

import (
	"context"
	"fmt"
	"hash/maphash"
	"time"
)

// monitorPeer owns a peer's entire lifecycle: start, ping loop, and
// restart-with-backoff on failure. It runs until the peer is removed or
// the engine shuts down.
func (e *Engine) monitorPeer(st *peerState) {
	defer e.wg.Done()

	name := st.config.Name

	for {
		st.mu.Lock()
		st.state = BackendStarting
		st.mu.Unlock()

		startCtx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
		err := st.peer.Start(startCtx)
		cancel()

		if err != nil {
			e.recordFailure(st, err)
			e.emitter.EmitFailed(name, err)

			backoff := e.calculateBackoff(st)
			e.logger.Info("backend will retry after backoff",
				"backend", name, "backoff", backoff, "failures", st.failureCountSnapshot())

			select {
			case <-time.After(backoff):
				continue
			case <-st.stopCh:
				return
			case <-e.ctx.Done():
				return
			}
		}

		st.mu.Lock()
		st.state = BackendHealthy
		st.startedAt = time.Now()
		st.failureCount = 0
		st.lastError = ""
		st.mu.Unlock()
		e.emitter.EmitStarted(name)

		if !e.pingLoop(st) {
			return
		}
	}
}

// pingLoop pings the peer on a staggered schedule until it's stopped,
// asked to restart, or the engine shuts down. It returns true when the
// caller should loop back and restart the peer, false when the peer
// should stay down for good.
func (e *Engine) pingLoop(st *peerState) bool {
	name := st.config.Name
	interval := st.health.Interval

	timer := time.NewTimer(staggerOffset(name, interval))
	defer timer.Stop()

	for {
		select {
		case <-st.stopCh:
			st.mu.Lock()
			st.state = BackendStopped
			st.mu.Unlock()
			return false

		case <-e.ctx.Done():
			st.mu.Lock()
			st.state = BackendStopped
			st.mu.Unlock()
			return false

		case <-st.restartCh:
			e.logger.Info("backend restart requested", "backend", name)
			e.emitter.EmitRestarting(name, st.failureCountSnapshot())
			_ = st.peer.Stop(context.Background())
			return true

		case <-st.peer.Exited():
			// The reaper detected the child exit directly, rather than
			// the next scheduled ping timing out — report and restart
			// exactly like a ping-discovered crash, just sooner.
			err := fmt.Errorf("backend process exited unexpectedly")
			e.recordFailure(st, err)
			e.emitter.EmitFailed(name, err)
			st.mu.Lock()
			st.state = BackendStopped
			st.mu.Unlock()
			e.logger.Warn("backend process exited unexpectedly", "backend", name)
			_ = st.peer.Stop(context.Background())

			backoff := e.calculateBackoff(st)
			select {
			case <-time.After(backoff):
				return true
			case <-st.stopCh:
				return false
			case <-e.ctx.Done():
				return false
			}

		case <-timer.C:
			pingCtx, cancel := context.WithTimeout(e.ctx, 5*time.Second)
			err := st.peer.Ping(pingCtx)
			cancel()

			if err != nil {
				if e.recordFailure(st, err) {
					e.emitter.EmitUnhealthy(name, err.Error())
					if !e.waitHalfOpen(st, 3*interval) {
						return false
					}
					_ = st.peer.Stop(context.Background())
					return true
				}
				timer.Reset(interval)
				continue
			}

			if st.recoveredFromFailure() {
				e.emitter.EmitHealthy(name)
			}
			timer.Reset(interval)
		}
	}
}

// waitHalfOpen blocks for window, the circuit's half-open probe period,
// returning false if the peer is stopped or the engine shuts down first.
func (e *Engine) waitHalfOpen(st *peerState, window time.Duration) bool {
	select {
	case <-time.After(window):
		return true
	case <-st.stopCh:
		st.mu.Lock()
		st.state = BackendStopped
		st.mu.Unlock()
		return false
	case <-e.ctx.Done():
		return false
	}
}

// recordFailure increments the peer's failure count. Once it reaches the
// configured threshold the circuit trips: the backend is marked
// unhealthy and CallTool refuses it until the half-open window passes.
func (e *Engine) recordFailure(st *peerState, err error) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failureCount++
	st.lastFailure = time.Now()
	st.lastError = err.Error()
	if st.failureCount >= st.health.FailureThreshold {
		st.state = BackendUnhealthy
		st.circuitUntil = time.Now().Add(3 * st.health.Interval)
		return true
	}
	return false
}

// recoveredFromFailure clears a peer's failure count after a successful
// ping, reporting whether it had accumulated any failures to clear.
func (st *peerState) recoveredFromFailure() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.failureCount == 0 {
		return false
	}
	st.failureCount = 0
	st.circuitUntil = time.Time{}
	wasUnhealthy := st.state != BackendHealthy
	st.state = BackendHealthy
	return wasUnhealthy
}

func (st *peerState) failureCountSnapshot() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.failureCount
}

// calculateBackoff returns the delay before the next start attempt:
// InitialBackoff doubled per consecutive failure, capped at MaxBackoff.
func (e *Engine) calculateBackoff(st *peerState) time.Duration {
	st.mu.RLock()
	failures := st.failureCount
	initial := st.health.InitialBackoff
	max := st.health.MaxBackoff
	st.mu.RUnlock()

	if failures <= 1 {
		return initial
	}
	backoff := initial * time.Duration(int64(1)<<uint(failures-1))
	if backoff > max {
		backoff = max
	}
	return backoff
}

// staggerOffset spreads each backend's first ping across up to 80% of
// the interval so a large fleet doesn't ping in lockstep. The zero
// maphash.Hash is randomly seeded, so the offset for a given name
// differs from call to call.
func staggerOffset(name string, interval time.Duration) time.Duration {
	span := int64(interval) * 8 / 10
	if span <= 0 {
		return 0
	}
	var h maphash.Hash
	h.WriteString(name)
	return time.Duration(h.Sum64() % uint64(span))
}
