package infra

import (
	"context"
	"errors"

	"crpt-client/client/crpt/domain"
)

type teeStats []domain.StatsStore

// TeeStats repassa cada evento para todos os stores não nulos.
// Todos recebem o evento mesmo que algum falhe; os erros são agregados.
func TeeStats(stores ...domain.StatsStore) domain.StatsStore {
	out := make(teeStats, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (t teeStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range t {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
