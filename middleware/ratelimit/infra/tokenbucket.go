package infra

import (
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

const defaultTokenBucketIdleTTL = 15 * time.Minute

// TokenBucket é um admitter alternativo baseado em token-bucket (x/time/rate),
// usando o mesmo registro particionado e a mesma limpeza do SlidingWindow.
//
// Diferente da janela deslizante, permite rajadas de até burst e reabastece rps
// tokens por segundo; não garante o limite exato por janela.
type TokenBucket struct {
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration

	base time.Time
	reg  *registry[*rate.Limiter]
}

func NewTokenBucket(rps float64, burst int, opts ...Option) (*TokenBucket, error) {
	if rps <= 0 {
		return nil, &domain.ConfigError{Field: "rps", Value: rps, Reason: "must be > 0"}
	}
	if burst <= 0 {
		return nil, &domain.ConfigError{Field: "burst", Value: burst, Reason: "must be > 0"}
	}

	o, err := buildOptions(defaultTokenBucketIdleTTL, opts)
	if err != nil {
		return nil, err
	}
	base, since := o.elapsed()

	b := &TokenBucket{
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      o.idleTTL,
		cleanupEvery: o.cleanupEvery,
		base:         base,
	}
	b.reg = newRegistry(o.shards, since, func() *rate.Limiter {
		return rate.NewLimiter(b.rps, b.burst)
	})
	return b, nil
}

func (b *TokenBucket) RPS() float64 { return float64(b.rps) }
func (b *TokenBucket) Burst() int { return b.burst }
func (b *TokenBucket) CleanupEvery() time.Duration { return b.cleanupEvery }

// Allow implementa domain.Admitter.
func (b *TokenBucket) Allow(key domain.Key) bool {
	return b.reg.update(key, func(lim **rate.Limiter, now time.Duration) bool {
		return (*lim).AllowN(b.base.Add(now), 1)
	})
}

// RetryAfter devolve quanto falta para a chave ter um token de novo.
func (b *TokenBucket) RetryAfter(key domain.Key) time.Duration {
	var d time.Duration
	b.reg.view(key, func(lim **rate.Limiter, now time.Duration) {
		tokens := (*lim).TokensAt(b.base.Add(now))
		if tokens >= 1 {
			return
		}
		d = time.Duration((1 - tokens) / float64(b.rps) * float64(time.Second))
	})
	return d
}

func (b *TokenBucket) Len() int { return b.reg.size() }

// Cleanup remove chaves com o balde cheio e sem acesso há mais de idleTTL.
// Balde cheio equivale a uma chave nunca vista, então nada se perde.
func (b *TokenBucket) Cleanup() int {
	return b.reg.sweep(func(lim **rate.Limiter, idleFor, now time.Duration) bool {
		return idleFor > b.idleTTL && (*lim).TokensAt(b.base.Add(now)) >= float64(b.burst)
	})
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (b *TokenBucket) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, b.cleanupEvery, b.Cleanup)
}
