package main

import (
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:8081")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.True(t, cfg.rateEnabled)
	assert.Equal(t, algorithmSlidingWindow, cfg.rateAlgorithm)
	assert.Equal(t, 100, cfg.rateMaxRequests)
	assert.Equal(t, time.Minute, cfg.rateWindow)
	assert.Equal(t, 2*time.Minute, cfg.rateCleanupEvery)
	assert.Equal(t, 32, cfg.rateShards)
	assert.Equal(t, 20, cfg.rateBurst)
	assert.Equal(t, 24*time.Hour, cfg.rateStatsTTL)
	assert.Equal(t, "ratelimit:stats", cfg.rateStatsPrefix)
}

func TestReadConfig_FromEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://upstream")
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("RATE_MAX_REQUESTS", "3")
	t.Setenv("RATE_WINDOW", "10s")
	t.Setenv("RATE_IDLE_TTL", "30s")
	t.Setenv("RATE_KEY_HEADER", "X-Api-Key")
	t.Setenv("TRUST_XFF", "true")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.listenAddr)
	assert.Equal(t, 3, cfg.rateMaxRequests)
	assert.Equal(t, 10*time.Second, cfg.rateWindow)
	assert.Equal(t, 30*time.Second, cfg.rateIdleTTL)
	assert.Equal(t, "X-Api-Key", cfg.rateKeyHeader)
	assert.True(t, cfg.trustXFF)
}

func TestReadConfig_LowRPSDefaultsBurstToOne(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://upstream")
	t.Setenv("RATE_ALGORITHM", "token-bucket")
	t.Setenv("RATE_RPS", "0.02")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.rateBurst)
}

func TestReadConfig_Errors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{name: "missing upstream", env: map[string]string{}, msg: "UPSTREAM_URL"},
		{name: "zero max requests", env: map[string]string{"RATE_MAX_REQUESTS": "0"}, msg: "RATE_MAX_REQUESTS"},
		{name: "zero window", env: map[string]string{"RATE_WINDOW": "0s"}, msg: "RATE_WINDOW"},
		{name: "unknown algorithm", env: map[string]string{"RATE_ALGORITHM": "fixed"}, msg: "RATE_ALGORITHM"},
		{name: "token bucket zero burst", env: map[string]string{"RATE_ALGORITHM": "token-bucket", "RATE_BURST": "0"}, msg: "RATE_BURST"},
		{name: "stats without redis", env: map[string]string{"RATE_STATS_ENABLED": "true"}, msg: "RATE_STATS_REDIS_ADDR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.name != "missing upstream" {
				t.Setenv("UPSTREAM_URL", "http://upstream")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := readConfig(newViper())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestBuildAdmitter(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://upstream")
	t.Setenv("RATE_MAX_REQUESTS", "2")
	t.Setenv("RATE_WINDOW", "1h")

	cfg, err := readConfig(newViper())
	require.NoError(t, err)

	adm, err := buildAdmitter(cfg)
	require.NoError(t, err)
	require.IsType(t, &infra.SlidingWindow{}, adm)

	assert.True(t, adm.Allow("k"))
	assert.True(t, adm.Allow("k"))
	assert.False(t, adm.Allow("k"))

	cfg.rateAlgorithm = algorithmTokenBucket
	adm, err = buildAdmitter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &infra.TokenBucket{}, adm)

	cfg.rateAlgorithm = algorithmSlidingWindow
	cfg.rateShards = 0
	_, err = buildAdmitter(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
