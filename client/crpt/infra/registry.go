package infra

import (
	"sync"
	"time"

	"crpt-client/client/crpt/domain"
)

// Registry mantém um WindowGate independente por chave (ex: INN do participante),
// com cache e limpeza periódica de gates ociosos.
type Registry struct {
	mu           sync.Mutex
	entries      map[domain.Key]*registryEntry
	capacity     int
	window       time.Duration
	gateOpts     []GateOption
	idleTTL      time.Duration
	cleanupEvery time.Duration
	closed       bool
}

type registryEntry struct {
	gate     *WindowGate
	lastSeen time.Time
}

type RegistryOption func(*Registry)

func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) RegistryOption {
	return func(r *Registry) { r.cleanupEvery = d }
}

// WithRegistryGateOptions repassa opções para cada gate criado.
func WithRegistryGateOptions(opts ...GateOption) RegistryOption {
	return func(r *Registry) { r.gateOpts = append(r.gateOpts, opts...) }
}

// NewRegistry valida capacity/window uma vez; depois disso Get nunca falha.
func NewRegistry(capacity int, window time.Duration, opts ...RegistryOption) (*Registry, error) {
	if err := validateGate(capacity, window); err != nil {
		return nil, err
	}

	r := &Registry{
		entries:      make(map[domain.Key]*registryEntry),
		capacity:     capacity,
		window:       window,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Registry) Capacity() int               { return r.capacity }
func (r *Registry) Window() time.Duration       { return r.window }
func (r *Registry) CleanupEvery() time.Duration { return r.cleanupEvery }

// Len devolve quantos gates estão ativos.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Get implementa domain.GateStore.
func (r *Registry) Get(key domain.Key) domain.PermitPool {
	return r.Gate(key)
}

// Gate devolve (criando se preciso) o gate da chave.
// Depois de Close, devolve um gate já encerrado: Acquire falha com ErrCancelled.
func (r *Registry) Gate(key domain.Key) *WindowGate {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entries[key]; ok {
		ent.lastSeen = now
		return ent.gate
	}

	// capacity/window já foram validados em NewRegistry.
	g, _ := NewWindowGate(r.capacity, r.window, r.gateOpts...)
	if r.closed {
		g.Shutdown()
		return g
	}
	r.entries[key] = &registryEntry{gate: g, lastSeen: now}
	return g
}

// Cleanup encerra gates ociosos. Um gate só sai se não tiver permissão em uso,
// assim ninguém que esteja esperando nele é cancelado.
func (r *Registry) Cleanup() {
	cutoff := time.Now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*WindowGate
	for k, ent := range r.entries {
		if ent.lastSeen.Before(cutoff) && ent.gate.Available() == ent.gate.Capacity() {
			idle = append(idle, ent.gate)
			delete(r.entries, k)
		}
	}
	r.mu.Unlock()

	for _, g := range idle {
		g.Shutdown()
	}
}

// Close encerra todos os gates. Esperas em andamento recebem ErrCancelled.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	gates := make([]*WindowGate, 0, len(r.entries))
	for k, ent := range r.entries {
		gates = append(gates, ent.gate)
		delete(r.entries, k)
	}
	r.mu.Unlock()

	for _, g := range gates {
		g.Shutdown()
	}
}

// StartJanitor inicia uma goroutine que limpa gates ociosos periodicamente.
// Pare cancelando o contexto.
func (r *Registry) StartJanitor(ctx DoneContext) {
	if r.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(r.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}
