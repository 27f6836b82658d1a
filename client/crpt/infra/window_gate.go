package infra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crpt-client/client/crpt/domain"
)

// WindowGate é o gate de admissão com janela fixa: no máximo `capacity` permissões
// por janela. A cada tick (a cada `window`) o contador volta para `capacity`,
// independente de quantas permissões ainda estão em uso.
//
// Release devolve uma permissão antes do fim da janela (limitado a capacity).
type WindowGate struct {
	capacity int
	window   time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	available int
	// wake é fechado (e trocado) sempre que available aumenta ou o gate encerra.
	wake   chan struct{}
	closed bool

	done     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

type gateConfig struct {
	ticks  <-chan time.Time
	logger *slog.Logger
}

type GateOption func(*gateConfig)

// WithTicks troca o time.Ticker interno por uma fonte externa de ticks (útil em testes).
func WithTicks(ticks <-chan time.Time) GateOption {
	return func(c *gateConfig) { c.ticks = ticks }
}

func WithGateLogger(l *slog.Logger) GateOption {
	return func(c *gateConfig) { c.logger = l }
}

// NewWindowGate cria o gate com todas as permissões disponíveis e inicia a
// goroutine de reposição. Pare com Shutdown.
func NewWindowGate(capacity int, window time.Duration, opts ...GateOption) (*WindowGate, error) {
	if err := validateGate(capacity, window); err != nil {
		return nil, err
	}

	cfg := gateConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	g := &WindowGate{
		capacity:  capacity,
		window:    window,
		logger:    cfg.logger,
		available: capacity,
		wake:      make(chan struct{}),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	ticks, stop := cfg.ticks, func() {}
	if ticks == nil {
		// Ticker é fixed-rate: ticks atrasados são descartados, sem acumular drift.
		t := time.NewTicker(window)
		ticks, stop = t.C, t.Stop
	}
	go g.run(ticks, stop)

	return g, nil
}

func validateGate(capacity int, window time.Duration) error {
	if capacity <= 0 {
		return &domain.ConfigurationError{Field: "capacity", Reason: fmt.Sprintf("must be > 0 (given: %d)", capacity)}
	}
	if window <= 0 {
		return &domain.ConfigurationError{Field: "window", Reason: fmt.Sprintf("must be > 0 (given: %s)", window)}
	}
	return nil
}

func (g *WindowGate) Capacity() int         { return g.capacity }
func (g *WindowGate) Window() time.Duration { return g.window }

// Available devolve quantas permissões restam na janela atual.
func (g *WindowGate) Available() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

// Acquire implementa domain.PermitPool.
// A função de release devolvida pode ser chamada mais de uma vez; só a primeira conta.
func (g *WindowGate) Acquire(ctx context.Context) (func(), error) {
	if err := g.Take(ctx); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(g.Release) }, nil
}

// Take bloqueia até haver uma permissão e a consome.
// Falha com domain.ErrCancelled se o gate for encerrado ou o ctx terminar antes.
func (g *WindowGate) Take(ctx context.Context) error {
	for {
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			return fmt.Errorf("%w: gate shut down", domain.ErrCancelled)
		}
		if g.available > 0 {
			g.available--
			g.mu.Unlock()
			return nil
		}
		wake := g.wake
		g.mu.Unlock()

		select {
		case <-wake:
		case <-g.done:
			return fmt.Errorf("%w: gate shut down", domain.ErrCancelled)
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
		}
	}
}

// Release devolve uma permissão. Nunca passa de capacity.
func (g *WindowGate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.available >= g.capacity {
		return
	}
	g.available++
	g.broadcastLocked()
}

// Shutdown para a reposição e acorda todos que esperam em Take com ErrCancelled.
// Pode ser chamado mais de uma vez.
func (g *WindowGate) Shutdown() {
	g.stopOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		close(g.done)
		g.mu.Unlock()

		<-g.stopped
		g.logger.Debug("window gate shut down", "capacity", g.capacity, "window", g.window)
	})
}

func (g *WindowGate) run(ticks <-chan time.Time, stop func()) {
	defer close(g.stopped)
	defer stop()

	for {
		select {
		case <-g.done:
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			g.reset()
		}
	}
}

func (g *WindowGate) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	used := g.capacity - g.available
	g.available = g.capacity
	if used > 0 {
		g.broadcastLocked()
	}
}

func (g *WindowGate) broadcastLocked() {
	close(g.wake)
	g.wake = make(chan struct{})
}
