// Package serverconfig changes the environment of the server under test
// and puts it back after a scenario.
package serverconfig

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"ocisaccept/pkg/logging"
)

const subsystem = "ServerConfig"

// Reconfigurer applies environment changes to the server and reverts them.
// Both calls report an HTTP-style status, 200 meaning success.
type Reconfigurer interface {
	Reconfigure(ctx context.Context, env map[string]string) (int, error)
	Rollback(ctx context.Context) (int, error)
}

// Tracker records whether a scenario changed the shared server
// configuration. A new Tracker is created for every scenario, so nothing
// leaks into the next one.
type Tracker struct {
	reconfigurer Reconfigurer

	mu      sync.Mutex
	touched bool
}

// NewTracker wraps r for one scenario.
func NewTracker(r Reconfigurer) *Tracker {
	return &Tracker{reconfigurer: r}
}

// Reconfigure marks the tracker as touched and forwards the change. The
// mark is set before the call because a failed call may still have
// restarted the server with part of the change.
func (t *Tracker) Reconfigure(ctx context.Context, env map[string]string) (int, error) {
	t.mu.Lock()
	t.touched = true
	t.mu.Unlock()

	return t.reconfigurer.Reconfigure(ctx, env)
}

// Touched reports whether Reconfigure was called since the last Restore.
func (t *Tracker) Touched() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.touched
}

// Restore rolls the server back if the scenario touched it. The touched
// mark is cleared whatever the outcome.
func (t *Tracker) Restore(ctx context.Context) error {
	t.mu.Lock()
	touched := t.touched
	t.touched = false
	t.mu.Unlock()

	if !touched {
		return nil
	}

	logging.Info(subsystem, "Rolling back server configuration")
	status, err := t.reconfigurer.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("rollback failed: expected HTTP status %d, got %d", http.StatusOK, status)
	}
	return nil
}
