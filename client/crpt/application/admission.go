package application

import (
	"context"
	"time"

	"crpt-client/client/crpt/domain"
)

// Admission concentra a regra de aquisição de permissões com timeout,
// sem saber nada sobre HTTP.
type Admission struct {
	Pool           domain.PermitPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma permissão.
// - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar ou o gate encerrar).
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Em caso de erro nenhuma permissão foi adquirida e release é nil.
func (a Admission) Acquire(ctx context.Context) (func(), error) {
	if a.AcquireTimeout <= 0 {
		return a.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, a.AcquireTimeout)
	defer cancel()
	return a.Pool.Acquire(acqCtx)
}

type singlePool struct {
	pool domain.PermitPool
}

// SinglePool é um GateStore que devolve o mesmo pool para qualquer chave.
func SinglePool(p domain.PermitPool) domain.GateStore {
	return singlePool{pool: p}
}

func (s singlePool) Get(domain.Key) domain.PermitPool { return s.pool }
