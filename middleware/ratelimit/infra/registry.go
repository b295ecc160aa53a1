package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
)

// registry é o mapa Key -> estado, particionado em shards.
//
// Há duas seções críticas distintas:
//   - shard.mu protege só o mapa (criar na primeira vez, remover quando ocioso);
//   - slot.mu protege o estado de uma chave (ler-expirar-contar-registrar).
//
// Allow nunca segura as duas ao mesmo tempo. O sweep segura shard e depois slot
// (com TryLock), marca o slot como removido e só então apaga do mapa. Quem pegou
// o ponteiro antes da remoção vê removed=true e busca de novo, então o estado de
// uma chamada em andamento nunca se perde.
type registry[S any] struct {
	shards   []registryShard[S]
	mask     uint64
	newState func() S
	now      func() time.Duration
}

type registryShard[S any] struct {
	mu      sync.Mutex
	entries map[domain.Key]*slot[S]
}

type slot[S any] struct {
	mu       sync.Mutex
	state    S
	lastSeen time.Duration
	removed  bool
}

func newRegistry[S any](shards int, now func() time.Duration, newState func() S) *registry[S] {
	n := nextPowerOfTwo(shards)
	r := &registry[S]{
		shards:   make([]registryShard[S], n),
		mask:     uint64(n - 1),
		newState: newState,
		now:      now,
	}
	for i := range r.shards {
		r.shards[i].entries = make(map[domain.Key]*slot[S])
	}
	return r
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (r *registry[S]) shardFor(key domain.Key) *registryShard[S] {
	return &r.shards[xxhash.Sum64String(string(key))&r.mask]
}

// update executa fn com o slot da chave travado, criando-o se não existir.
// O tempo é lido já dentro da seção crítica: timestamps de uma chave nunca
// chegam fora de ordem.
func (r *registry[S]) update(key domain.Key, fn func(s *S, now time.Duration) bool) bool {
	sh := r.shardFor(key)
	for {
		sh.mu.Lock()
		sl, ok := sh.entries[key]
		if !ok {
			sl = &slot[S]{state: r.newState()}
			sh.entries[key] = sl
		}
		sh.mu.Unlock()

		sl.mu.Lock()
		if sl.removed {
			sl.mu.Unlock()
			continue
		}
		now := r.now()
		sl.lastSeen = now
		ok = fn(&sl.state, now)
		sl.mu.Unlock()
		return ok
	}
}

// view executa fn sobre o slot existente sem criar entrada nem tocar lastSeen.
// Retorna false se a chave não está no registro.
func (r *registry[S]) view(key domain.Key, fn func(s *S, now time.Duration)) bool {
	sh := r.shardFor(key)
	sh.mu.Lock()
	sl, ok := sh.entries[key]
	sh.mu.Unlock()
	if !ok {
		return false
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.removed {
		return false
	}
	fn(&sl.state, r.now())
	return true
}

// sweep remove os slots para os quais idle retorna true e devolve quantos saíram.
// Slot ocupado (TryLock falhou) está em uso, então fica para a próxima passada.
func (r *registry[S]) sweep(idle func(s *S, idleFor, now time.Duration) bool) int {
	removed := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for k, sl := range sh.entries {
			if !sl.mu.TryLock() {
				continue
			}
			now := r.now()
			if idle(&sl.state, now-sl.lastSeen, now) {
				sl.removed = true
				delete(sh.entries, k)
				removed++
			}
			sl.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return removed
}

func (r *registry[S]) size() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
