package infra

import (
	"context"
	"sync"

	"crpt-client/client/crpt/domain"
)

// Counters agrega submissões por resultado.
type Counters map[domain.Outcome]int64

func (c Counters) clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byDocType map[string]Counters
	byKey     map[domain.Key]Counters
	byStatus  map[int]int64

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		total:     make(Counters),
		byDocType: make(map[string]Counters),
		byKey:     make(map[domain.Key]Counters),
		byStatus:  make(map[int]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total[ev.Outcome]++

	c, ok := s.byDocType[ev.DocType]
	if !ok {
		c = make(Counters)
		s.byDocType[ev.DocType] = c
	}
	c[ev.Outcome]++

	if ev.Status != 0 {
		s.byStatus[ev.Status]++
	}

	if s.trackKeys {
		k, ok := s.byKey[ev.Key]
		if !ok {
			k = make(Counters)
			s.byKey[ev.Key] = k
		}
		k[ev.Outcome]++
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.clone()
}

func (s *MemoryStatsStore) ByDocType() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byDocType))
	for k, v := range s.byDocType {
		out[k] = v.clone()
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v.clone()
	}
	return out
}

func (s *MemoryStatsStore) ByStatus() map[int]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int64, len(s.byStatus))
	for k, v := range s.byStatus {
		out[k] = v
	}
	return out
}
