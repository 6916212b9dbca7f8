// Package health probes the server's backing services and keeps the
// latest snapshot for the status endpoints.
package health

import (
	"context"
	"sync"
	"time"

	"mcpd/internal/shared/logger"
	"mcpd/internal/shared/types"
)

const defaultCheckTimeout = 10 * time.Second

// Checker fans a health probe out to every registered backend.
type Checker struct {
	timeout  time.Duration
	backends []types.Backend

	mu   sync.RWMutex
	last map[string]*types.BackendState
}

func New(timeout time.Duration, backends ...types.Backend) *Checker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Checker{
		timeout:  timeout,
		backends: backends,
		last:     make(map[string]*types.BackendState),
	}
}

// Check probes all backends concurrently and returns the new states,
// keyed by backend name.
func (c *Checker) Check(ctx context.Context) map[string]*types.BackendState {
	states := make(map[string]*types.BackendState)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, backend := range c.backends {
		wg.Add(1)
		go func(b types.Backend) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := b.HealthCheck(checkCtx)
			latency := time.Since(start).Milliseconds()

			state := &types.BackendState{
				Status:    types.StatusUp,
				LatencyMs: latency,
				CheckedAt: time.Now(),
			}
			logFields := logger.Debug().Str("backend", b.Name()).Int64("latency_ms", latency)
			if err != nil {
				state.Status = types.StatusDown
				state.Error = err.Error()
				logFields.Bool("success", false).Err(err).Msg("health check failed")
			} else {
				logFields.Bool("success", true).Msg("health check passed")
			}

			mu.Lock()
			states[b.Name()] = state
			mu.Unlock()
		}(backend)
	}
	wg.Wait()

	c.mu.Lock()
	c.last = states
	c.mu.Unlock()
	return states
}

// Last returns a copy of the most recent snapshot.
func (c *Checker) Last() map[string]*types.BackendState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*types.BackendState, len(c.last))
	for name, state := range c.last {
		stateCopy := *state
		out[name] = &stateCopy
	}
	return out
}

// Healthy reports whether every backend was up at the last check. It is
// true before the first check has run.
func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, state := range c.last {
		if state.Status != types.StatusUp {
			return false
		}
	}
	return true
}
