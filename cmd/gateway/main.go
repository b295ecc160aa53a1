package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := readConfig(newViper())
	if err != nil {
		// logger ainda não existe; usa um de produção só para o erro.
		zap.Must(zap.NewProduction()).Fatal("config error", zap.Error(err))
	}

	logger := newLogger(cfg.logDevelopment)
	defer func() { _ = logger.Sync() }()

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		logger.Fatal("invalid UPSTREAM_URL", zap.Error(err))
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	adm, err := buildAdmitter(cfg)
	if err != nil {
		logger.Fatal("rate limiter config error", zap.Error(err))
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			logger.Fatal("redis stats ping error", zap.String("addr", cfg.rateStatsRedisAddr), zap.Error(err))
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	adm.StartJanitor(ctx)

	h := http.Handler(proxy)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Admitter:            adm,
			Name:                "gateway",
			Stats:               statsStore,
			Logger:              logger,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		})(h)
	}

	stdLog := zap.NewStdLog(logger)
	if cfg.accessLog {
		h = handlers.CombinedLoggingHandler(stdLog.Writer(), h)
	}
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(stdLog))(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ErrorLog:          stdLog,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.Stringer("upstream", target))
	logger.Info("rate",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.String("algorithm", cfg.rateAlgorithm),
		zap.Int("maxRequests", cfg.rateMaxRequests),
		zap.Duration("window", cfg.rateWindow),
		zap.Float64("rps", cfg.rateRPS),
		zap.Int("burst", cfg.rateBurst),
		zap.Duration("idleTTL", cfg.rateIdleTTL),
		zap.Duration("cleanupEvery", cfg.rateCleanupEvery),
		zap.String("keyHeader", cfg.rateKeyHeader),
		zap.Bool("trustXFF", cfg.trustXFF))
	logger.Info("rate-stats",
		zap.Bool("enabled", cfg.rateStatsEnabled),
		zap.String("redisAddr", cfg.rateStatsRedisAddr),
		zap.String("bucket", cfg.rateStatsBucket),
		zap.Duration("ttl", cfg.rateStatsTTL),
		zap.Bool("trackKeys", cfg.rateStatsTrackKeys))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(development bool) *zap.Logger {
	if development {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.Must(zap.NewProduction())
}
