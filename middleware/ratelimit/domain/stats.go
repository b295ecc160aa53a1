package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão já tomada.
//
// Method/Path são strings genéricas (web, gRPC, fila...). Limiter identifica
// qual instância decidiu quando há um limiter por endpoint.
//
// Cuidado com cardinalidade: Key/Path sem controle explodem o número de chaves no Redis.
type StatsEvent struct {
	Key     Key
	Limiter string
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas de admissão.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
