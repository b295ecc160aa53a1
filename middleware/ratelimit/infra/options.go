package infra

import (
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

const (
	defaultShards       = 32
	defaultCleanupEvery = 2 * time.Minute
)

type options struct {
	idleTTL      time.Duration
	cleanupEvery time.Duration
	shards       int
	clock        func() time.Time
}

// Option configura SlidingWindow e TokenBucket.
type Option func(*options)

// WithIdleTTL define há quanto tempo uma chave precisa estar sem acesso para ser
// removida pela limpeza. Uma chave só sai se o estado dela também estiver vazio.
func WithIdleTTL(d time.Duration) Option {
	return func(o *options) { o.idleTTL = d }
}

// WithCleanupEvery define o intervalo do janitor. <= 0 desliga o janitor;
// Cleanup continua podendo ser chamado manualmente.
func WithCleanupEvery(d time.Duration) Option {
	return func(o *options) { o.cleanupEvery = d }
}

// WithShards define em quantas partes o registro de chaves é dividido
// (arredondado para potência de 2).
func WithShards(n int) Option {
	return func(o *options) { o.shards = n }
}

// WithClock troca a fonte de tempo (testes). O padrão é time.Now, cuja leitura
// monotônica torna as decisões imunes a ajustes do relógio de parede.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

func buildOptions(defaultIdle time.Duration, opts []Option) (options, error) {
	o := options{
		cleanupEvery: defaultCleanupEvery,
		shards:       defaultShards,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.idleTTL < 0 {
		return options{}, &domain.ConfigError{Field: "idle_ttl", Value: o.idleTTL, Reason: "must be >= 0"}
	}
	if o.idleTTL == 0 {
		o.idleTTL = defaultIdle
	}
	if o.shards <= 0 {
		return options{}, &domain.ConfigError{Field: "shards", Value: o.shards, Reason: "must be > 0"}
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o, nil
}

// elapsed devolve o tempo decorrido desde base usando o relógio configurado.
// time.Time.Sub usa a leitura monotônica quando os dois lados a possuem.
func (o options) elapsed() (base time.Time, since func() time.Duration) {
	base = o.clock()
	clock := o.clock
	return base, func() time.Duration { return clock().Sub(base) }
}
