// Package breaker stops calling a failing endpoint for a cooldown period
// after a run of consecutive failures.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// Cooldown is how long an open breaker rejects calls before probing.
	Cooldown time.Duration
}

type Breaker struct {
	name   string
	cfg    Config
	logger hclog.Logger
	now    func() time.Time

	mu                 sync.Mutex
	state              State
	consecutiveFailure int
	consecutiveSuccess int
	retryAt            time.Time
	probing            bool
}

func New(name string, cfg Config, logger hclog.Logger) *Breaker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.Named("breaker").With("name", name),
		now:    time.Now,
	}
}

// Call runs fn unless the breaker is open. While half-open only one call is
// let through at a time. A failure after ctx was cancelled is not counted; a
// deadline that expires is.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		b.release()
		return err
	}
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailure, b.consecutiveSuccess = 0, 0
	b.probing = false
	b.setState(StateClosed)
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.now().Before(b.retryAt) {
		b.setState(StateHalfOpen)
	}
	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// release gives back a half-open slot without counting the outcome.
func (b *Breaker) release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err != nil {
		b.consecutiveFailure++
		b.consecutiveSuccess = 0
		switch {
		case b.state == StateHalfOpen:
			b.setState(StateOpen)
		case b.state == StateClosed && b.consecutiveFailure >= b.cfg.FailureThreshold:
			b.logger.Warn("suspending calls after consecutive failures", "failures", b.consecutiveFailure, "error", err)
			b.setState(StateOpen)
		}
		return
	}

	b.consecutiveFailure = 0
	b.consecutiveSuccess++
	if b.state == StateHalfOpen && b.consecutiveSuccess >= b.cfg.SuccessThreshold {
		b.setState(StateClosed)
	}
}

func (b *Breaker) setState(target State) {
	if b.state == target {
		return
	}
	b.logger.Debug("breaker state change", "from", b.state, "to", target)
	if target == StateClosed && b.state != StateClosed {
		b.logger.Info("calls resumed")
	}
	b.state = target
	switch target {
	case StateOpen:
		b.retryAt = b.now().Add(b.cfg.Cooldown)
		b.consecutiveSuccess = 0
	case StateClosed:
		b.retryAt = time.Time{}
		b.consecutiveFailure = 0
	}
}
