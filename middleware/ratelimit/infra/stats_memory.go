package infra

import (
	"context"
	"maps"
	"sync"

	"admission-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore conta decisões de admissão em memória, no total, por limiter,
// por rota e (opcionalmente) por chave.
//
// Não faz expiração: útil para testes e desenvolvimento, não para produção.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byLimiter map[string]Counters
	byRoute   map[string]Counters
	byKey     map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byLimiter: make(map[string]Counters),
		byRoute:   make(map[string]Counters),
		byKey:     make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	bump(s.byRoute, route, ev.Allowed)
	if ev.Limiter != "" {
		bump(s.byLimiter, ev.Limiter, ev.Allowed)
	}
	if s.trackKeys {
		bump(s.byKey, ev.Key, ev.Allowed)
	}
	return nil
}

func bump[K comparable](m map[K]Counters, k K, allowed bool) {
	c := m[k]
	c.add(allowed)
	m[k] = c
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByLimiter() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byLimiter)
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}
