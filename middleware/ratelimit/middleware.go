package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Admitter            domain.Admitter
	// Name identifica o limiter nas estatísticas (ex: "banking").
	Name                string
	Stats               domain.StatsStore
	Logger              *zap.Logger
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

type remainingInfo interface {
	Remaining(key domain.Key) int
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware consulta o admitter antes do próximo handler. Bloqueado responde
// RejectStatus (429 por padrão) com Retry-After e não chama next.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.Service{
		Admitter:   opts.Admitter,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))

			dec := svc.Decide(key)

			if opts.AddRateLimitHeaders {
				setRateLimitHeaders(w.Header(), opts.Admitter, key)
			}

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Limiter: opts.Name,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
				if err != nil {
					opts.Logger.Warn("ratelimit stats record failed",
						zap.String("limiter", opts.Name),
						zap.Error(err))
				}
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(h http.Header, adm domain.Admitter, key domain.Key) {
	h.Set("X-RateLimit-Key", string(key))
	if wi, ok := adm.(domain.WindowInfo); ok {
		h.Set("X-RateLimit-Limit", formatInt(wi.MaxRequests()))
		h.Set("X-RateLimit-Window", formatInt(retryAfterSeconds(wi.Window())))
	}
	if ri, ok := adm.(remainingInfo); ok {
		h.Set("X-RateLimit-Remaining", formatInt(ri.Remaining(key)))
	}
	if ri, ok := adm.(rateInfo); ok {
		h.Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
		h.Set("X-RateLimit-Burst", formatInt(ri.Burst()))
	}
}
