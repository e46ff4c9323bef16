package readiness

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StatePending State = iota
	StateProbing
	StateReady
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Probe reports whether the target is ready. A non-nil error counts as
// "not ready yet" and is remembered as the last failure.
type Probe func(ctx context.Context) (bool, error)

type DeadlineError struct {
	Timeout  time.Duration
	Attempts int
	LastErr  error
}

func (e *DeadlineError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("not ready after %s (%d attempts): %v", e.Timeout, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("not ready after %s (%d attempts)", e.Timeout, e.Attempts)
}

func (e *DeadlineError) Unwrap() error {
	return e.LastErr
}

// Poller runs a probe on a fixed interval until it succeeds or the timeout
// elapses.
type Poller struct {
	interval time.Duration
	timeout  time.Duration

	mu       sync.RWMutex
	state    State
	attempts int
	lastErr  error
}

func NewPoller(interval, timeout time.Duration) *Poller {
	return &Poller{
		interval: interval,
		timeout:  timeout,
		state:    StatePending,
	}
}

func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Poller) Attempts() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.attempts
}

func (p *Poller) setState(state State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *Poller) record(err error) {
	p.mu.Lock()
	p.attempts++
	if err != nil {
		p.lastErr = err
	}
	p.mu.Unlock()
}

func (p *Poller) Run(ctx context.Context, probe Probe) error {
	p.setState(StateProbing)

	deadlineCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		ready, err := probe(deadlineCtx)
		p.record(err)
		if err == nil && ready {
			p.setState(StateReady)
			return nil
		}

		select {
		case <-ticker.C:
		case <-deadlineCtx.Done():
			if ctx.Err() != nil {
				p.setState(StateExpired)
				return ctx.Err()
			}
			p.setState(StateExpired)
			p.mu.RLock()
			defer p.mu.RUnlock()
			return &DeadlineError{Timeout: p.timeout, Attempts: p.attempts, LastErr: p.lastErr}
		}
	}
}

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
