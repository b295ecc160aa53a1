package application

import (
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

const defaultRetryAfter = 1 * time.Second

// Service concentra a regra de aplicação da admissão.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Admitter   domain.Admitter
	// RetryAfter fixo para respostas bloqueadas. Se 0, usa a dica do admitter
	// (RetryHinter), depois a janela (WindowInfo), depois 1s.
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Admitter == nil {
		return domain.Decision{Allowed: true}
	}
	if s.Admitter.Allow(key) {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: s.retryAfter(key)}
}

func (s Service) retryAfter(key domain.Key) time.Duration {
	if s.RetryAfter > 0 {
		return s.RetryAfter
	}
	if h, ok := s.Admitter.(domain.RetryHinter); ok {
		if d := h.RetryAfter(key); d > 0 {
			return d
		}
	}
	if wi, ok := s.Admitter.(domain.WindowInfo); ok && wi.Window() > 0 {
		return wi.Window()
	}
	return defaultRetryAfter
}
