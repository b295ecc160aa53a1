package main

import (
	"encoding/json"
	"net/http"
	"time"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// serviceLimit é o limite de um grupo de rotas. Cada grupo tem seu próprio
// SlidingWindow: estourar o limite de /banking não afeta /documents.
type serviceLimit struct {
	name        string
	maxRequests int
	window      time.Duration
}

var defaultLimits = []serviceLimit{
	{name: "attendance", maxRequests: 60, window: time.Minute},
	{name: "banking", maxRequests: 10, window: time.Minute},
	{name: "disputes", maxRequests: 20, window: time.Minute},
	{name: "documents", maxRequests: 5, window: 10 * time.Second},
	{name: "portal", maxRequests: 30, window: time.Minute},
}

type server struct {
	logger   *zap.Logger
	stats    *infra.MemoryStatsStore
	limiters map[string]*infra.SlidingWindow
}

func newServer(logger *zap.Logger, limits []serviceLimit, opts ...infra.Option) (*server, error) {
	s := &server{
		logger:   logger,
		stats:    infra.NewMemoryStatsStore(),
		limiters: make(map[string]*infra.SlidingWindow, len(limits)),
	}
	for _, l := range limits {
		w, err := infra.NewSlidingWindow(l.maxRequests, l.window, opts...)
		if err != nil {
			return nil, err
		}
		s.limiters[l.name] = w
	}
	return s, nil
}

func (s *server) startJanitors(ctx infra.DoneContext) {
	for _, w := range s.limiters {
		w.StartJanitor(ctx)
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/stats", s.handleStats)

	for name, lim := range s.limiters {
		r.Route("/"+name, func(r chi.Router) {
			r.Use(ratelimit.Middleware(ratelimit.Options{
				Admitter:            lim,
				Name:                name,
				Stats:               s.stats,
				Logger:              s.logger,
				KeyHeader:           "X-User-ID",
				TrustXForwardedFor:  true,
				AddRateLimitHeaders: true,
			}))
			r.HandleFunc("/*", accepted(name))
		})
	}
	return r
}

// accepted é o lugar do trabalho real do serviço (banco, modelo, ingestão),
// que só roda depois da admissão.
func accepted(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service":    service,
			"status":     "accepted",
			"path":       r.URL.Path,
			"request_id": w.Header().Get("X-Request-ID"),
		})
	}
}

type limiterStats struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	Keys    int   `json:"keys"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	counters := s.stats.ByLimiter()
	out := make(map[string]limiterStats, len(s.limiters))
	for name, lim := range s.limiters {
		c := counters[name]
		out[name] = limiterStats{Allowed: c.Allowed, Denied: c.Denied, Keys: lim.Len()}
	}
	writeJSON(w, http.StatusOK, out)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
