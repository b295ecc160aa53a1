package infra

import (
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// SlidingWindow é o controlador de admissão por janela deslizante (log de timestamps).
//
// Para cada chave guarda os instantes das requisições aceitas. Uma chamada expira
// os instantes com idade > window, aceita se sobrarem menos que maxRequests e
// registra o instante atual. Em qualquer janela de tamanho window, inclusive as
// que cruzariam a borda de um bucket fixo, nunca há mais que maxRequests aceitas.
type SlidingWindow struct {
	maxRequests  int
	window       time.Duration
	idleTTL      time.Duration
	cleanupEvery time.Duration

	reg *registry[windowLog]
}

// NewSlidingWindow valida a configuração e cria o controlador. A configuração é
// imutável; para trocar limites crie outra instância.
func NewSlidingWindow(maxRequests int, window time.Duration, opts ...Option) (*SlidingWindow, error) {
	if maxRequests <= 0 {
		return nil, &domain.ConfigError{Field: "max_requests", Value: maxRequests, Reason: "must be > 0"}
	}
	if window <= 0 {
		return nil, &domain.ConfigError{Field: "time_window", Value: window, Reason: "must be > 0"}
	}

	o, err := buildOptions(window, opts)
	if err != nil {
		return nil, err
	}
	_, since := o.elapsed()

	w := &SlidingWindow{
		maxRequests:  maxRequests,
		window:       window,
		idleTTL:      o.idleTTL,
		cleanupEvery: o.cleanupEvery,
	}
	w.reg = newRegistry(o.shards, since, func() windowLog { return windowLog{} })
	return w, nil
}

func (w *SlidingWindow) MaxRequests() int { return w.maxRequests }
func (w *SlidingWindow) Window() time.Duration { return w.window }
func (w *SlidingWindow) IdleTTL() time.Duration { return w.idleTTL }
func (w *SlidingWindow) CleanupEvery() time.Duration { return w.cleanupEvery }

// Allow implementa domain.Admitter.
func (w *SlidingWindow) Allow(key domain.Key) bool {
	return w.reg.update(key, func(l *windowLog, now time.Duration) bool {
		l.expire(now, w.window)
		if l.count >= w.maxRequests {
			return false
		}
		l.push(now, w.maxRequests)
		return true
	})
}

// Remaining devolve quantas aceitações ainda cabem na janela atual da chave.
// Não cria entrada para chaves desconhecidas.
func (w *SlidingWindow) Remaining(key domain.Key) int {
	remaining := w.maxRequests
	w.reg.view(key, func(l *windowLog, now time.Duration) {
		l.expire(now, w.window)
		remaining = w.maxRequests - l.count
	})
	return remaining
}

// RetryAfter devolve quanto falta para o timestamp mais antigo sair da janela.
// 0 quando já há vaga.
func (w *SlidingWindow) RetryAfter(key domain.Key) time.Duration {
	var d time.Duration
	w.reg.view(key, func(l *windowLog, now time.Duration) {
		l.expire(now, w.window)
		if l.count < w.maxRequests {
			return
		}
		d = l.oldest() + w.window - now
		if d < 0 {
			d = 0
		}
	})
	return d
}

// Len devolve quantas chaves estão no registro.
func (w *SlidingWindow) Len() int { return w.reg.size() }

// Cleanup remove chaves com janela vazia e sem acesso há mais de idleTTL.
func (w *SlidingWindow) Cleanup() int {
	return w.reg.sweep(func(l *windowLog, idleFor, now time.Duration) bool {
		l.expire(now, w.window)
		return l.count == 0 && idleFor > w.idleTTL
	})
}

// StartJanitor inicia uma goroutine que chama Cleanup periodicamente.
// Pare cancelando o contexto.
func (w *SlidingWindow) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, w.cleanupEvery, w.Cleanup)
}

// windowLog é um buffer circular de timestamps aceitos, do mais antigo ao mais novo.
// Cresce sob demanda até maxRequests e nunca passa disso.
type windowLog struct {
	buf   []time.Duration
	head  int
	count int
}

func (l *windowLog) oldest() time.Duration { return l.buf[l.head] }

func (l *windowLog) newest() time.Duration {
	return l.buf[(l.head+l.count-1)%len(l.buf)]
}

func (l *windowLog) expire(now, window time.Duration) {
	for l.count > 0 && now-l.buf[l.head] > window {
		l.head = (l.head + 1) % len(l.buf)
		l.count--
	}
	if l.count == 0 {
		l.head = 0
	}
}

func (l *windowLog) push(t time.Duration, limit int) {
	// relógio de teste pode voltar; a ordem do log não.
	if l.count > 0 && t < l.newest() {
		t = l.newest()
	}
	if l.count == len(l.buf) {
		l.grow(limit)
	}
	l.buf[(l.head+l.count)%len(l.buf)] = t
	l.count++
}

func (l *windowLog) grow(limit int) {
	n := len(l.buf) * 2
	if n == 0 {
		n = 4
	}
	if n > limit {
		n = limit
	}
	buf := make([]time.Duration, n)
	for i := 0; i < l.count; i++ {
		buf[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	l.buf = buf
	l.head = 0
}
