package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/spf13/viper"
)

const (
	algorithmSlidingWindow = "sliding-window"
	algorithmTokenBucket   = "token-bucket"
)

type config struct {
	listenAddr     string
	upstreamURL    string
	accessLog      bool
	logDevelopment bool

	rateEnabled      bool
	rateAlgorithm    string
	rateMaxRequests  int
	rateWindow       time.Duration
	rateIdleTTL      time.Duration
	rateCleanupEvery time.Duration
	rateShards       int
	rateRPS          float64
	rateBurst        int
	rateKeyHeader    string
	trustXFF         bool
	retryAfter       time.Duration
	addHeaders       bool

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

// newViper lê tudo do ambiente: a chave "rate_window" vem de RATE_WINDOW.
func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("access_log", true)
	v.SetDefault("log_development", false)

	v.SetDefault("rate_enabled", true)
	v.SetDefault("rate_algorithm", algorithmSlidingWindow)
	v.SetDefault("rate_max_requests", 100)
	v.SetDefault("rate_window", "1m")
	v.SetDefault("rate_idle_ttl", "0s")
	v.SetDefault("rate_cleanup_every", "2m")
	v.SetDefault("rate_shards", 32)
	v.SetDefault("rate_rps", 10.0)
	v.SetDefault("trust_xff", false)
	v.SetDefault("retry_after", "0s")
	v.SetDefault("add_ratelimit_headers", false)

	v.SetDefault("rate_stats_enabled", false)
	v.SetDefault("rate_stats_redis_db", 0)
	v.SetDefault("rate_stats_prefix", "ratelimit:stats")
	v.SetDefault("rate_stats_ttl", "24h")
	v.SetDefault("rate_stats_bucket", "minute")
	v.SetDefault("rate_stats_track_keys", false)
	return v
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{
		listenAddr:     v.GetString("listen_addr"),
		upstreamURL:    strings.TrimSpace(v.GetString("upstream_url")),
		accessLog:      v.GetBool("access_log"),
		logDevelopment: v.GetBool("log_development"),

		rateEnabled:      v.GetBool("rate_enabled"),
		rateAlgorithm:    strings.ToLower(strings.TrimSpace(v.GetString("rate_algorithm"))),
		rateMaxRequests:  v.GetInt("rate_max_requests"),
		rateWindow:       v.GetDuration("rate_window"),
		rateIdleTTL:      v.GetDuration("rate_idle_ttl"),
		rateCleanupEvery: v.GetDuration("rate_cleanup_every"),
		rateShards:       v.GetInt("rate_shards"),
		rateRPS:          v.GetFloat64("rate_rps"),
		rateKeyHeader:    v.GetString("rate_key_header"),
		trustXFF:         v.GetBool("trust_xff"),
		retryAfter:       v.GetDuration("retry_after"),
		addHeaders:       v.GetBool("add_ratelimit_headers"),

		rateStatsEnabled:       v.GetBool("rate_stats_enabled"),
		rateStatsRedisAddr:     v.GetString("rate_stats_redis_addr"),
		rateStatsRedisPassword: v.GetString("rate_stats_redis_password"),
		rateStatsRedisDB:       v.GetInt("rate_stats_redis_db"),
		rateStatsPrefix:        v.GetString("rate_stats_prefix"),
		rateStatsTTL:           v.GetDuration("rate_stats_ttl"),
		rateStatsBucket:        v.GetString("rate_stats_bucket"),
		rateStatsTrackKeys:     v.GetBool("rate_stats_track_keys"),
	}

	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 dá a impressão de que o
	// limiter não funciona, porque as primeiras ~20 passam.
	if v.IsSet("rate_burst") {
		cfg.rateBurst = v.GetInt("rate_burst")
	} else {
		cfg.rateBurst = 20
		if cfg.rateRPS > 0 && cfg.rateRPS < 1 {
			cfg.rateBurst = 1
		}
	}

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}

	switch cfg.rateAlgorithm {
	case algorithmSlidingWindow:
		if cfg.rateMaxRequests <= 0 {
			return config{}, errors.New("RATE_MAX_REQUESTS must be > 0")
		}
		if cfg.rateWindow <= 0 {
			return config{}, errors.New("RATE_WINDOW must be > 0")
		}
	case algorithmTokenBucket:
		if cfg.rateRPS <= 0 {
			return config{}, errors.New("RATE_RPS must be > 0")
		}
		if cfg.rateBurst <= 0 {
			return config{}, errors.New("RATE_BURST must be > 0")
		}
	default:
		return config{}, fmt.Errorf("RATE_ALGORITHM must be %q or %q, got %q",
			algorithmSlidingWindow, algorithmTokenBucket, cfg.rateAlgorithm)
	}
	return cfg, nil
}

// admitter é o que o gateway precisa de qualquer algoritmo.
type admitter interface {
	domain.Admitter
	StartJanitor(ctx infra.DoneContext)
}

func buildAdmitter(cfg config) (admitter, error) {
	opts := []infra.Option{
		infra.WithIdleTTL(cfg.rateIdleTTL),
		infra.WithCleanupEvery(cfg.rateCleanupEvery),
		infra.WithShards(cfg.rateShards),
	}
	if cfg.rateAlgorithm == algorithmTokenBucket {
		tb, err := infra.NewTokenBucket(cfg.rateRPS, cfg.rateBurst, opts...)
		if err != nil {
			return nil, err
		}
		return tb, nil
	}
	sw, err := infra.NewSlidingWindow(cfg.rateMaxRequests, cfg.rateWindow, opts...)
	if err != nil {
		return nil, err
	}
	return sw, nil
}
