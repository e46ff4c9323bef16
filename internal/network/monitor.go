package network

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/helpers/breaker"
	"github.com/eleven-am/poanet/internal/ports"
)

const (
	monitorFailureThreshold = 5
	monitorCooldownPeriods  = 6
)

// blockMonitor polls the chain head and publishes a NewBlock event for each
// height increase.
type blockMonitor struct {
	cluster  string
	interval time.Duration
	client   func() ports.ChainClient
	guard    *breaker.Breaker
	events   ports.EventPublisher
	logger   hclog.Logger
	now      func() time.Time

	mu     sync.Mutex
	latest uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *blockMonitor) start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	m.logger.Debug("block monitor started", "interval", m.interval)
}

func (m *blockMonitor) stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Debug("block monitor stopped")
}

func (m *blockMonitor) Latest() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

func (m *blockMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *blockMonitor) poll(ctx context.Context) {
	client := m.client()
	if client == nil {
		return
	}
	var height uint64
	err := m.guard.Call(ctx, func(ctx context.Context) error {
		pollCtx, cancel := context.WithTimeout(ctx, m.interval)
		defer cancel()
		var err error
		height, err = client.BlockNumber(pollCtx)
		return err
	})
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, breaker.ErrOpen) {
			m.logger.Debug("block poll failed", "error", err)
		}
		return
	}

	m.mu.Lock()
	advanced := height > m.latest
	if advanced {
		m.latest = height
	}
	m.mu.Unlock()

	if advanced && m.events != nil {
		m.logger.Trace("new block", "number", height)
		m.events.Publish(domain.NewBlock{Cluster: m.cluster, Number: height, At: m.now()})
	}
}
