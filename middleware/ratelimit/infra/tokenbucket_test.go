package infra

import (
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	b, err := NewTokenBucket(0.02, 1)
	require.NoError(t, err)

	if !b.Allow(domain.Key("k")) {
		t.Fatalf("expected first Allow to be true")
	}
	if b.Allow(domain.Key("k")) {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
	if !b.Allow(domain.Key("other")) {
		t.Fatalf("expected a different key to have its own bucket")
	}
}

func TestTokenBucket_RefillsOverTime(t *testing.T) {
	clock := newFakeClock()
	b, err := NewTokenBucket(2, 1, WithClock(clock.Now))
	require.NoError(t, err)

	require.True(t, b.Allow("k"))
	require.False(t, b.Allow("k"))
	assert.Equal(t, 500*time.Millisecond, b.RetryAfter("k"))

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, time.Duration(0), b.RetryAfter("k"))
	assert.True(t, b.Allow("k"))
}

func TestTokenBucket_CleanupRemovesIdleFullBuckets(t *testing.T) {
	clock := newFakeClock()
	b, err := NewTokenBucket(10, 1, WithClock(clock.Now), WithIdleTTL(2*time.Minute), WithCleanupEvery(0))
	require.NoError(t, err)

	require.True(t, b.Allow("k"))
	require.Equal(t, 1, b.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, 0, b.Cleanup())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, b.Cleanup())
	assert.Equal(t, 0, b.Len())
}

func TestTokenBucket_DefaultsAndAccessors(t *testing.T) {
	b, err := NewTokenBucket(5, 10)
	require.NoError(t, err)

	assert.Equal(t, 5.0, b.RPS())
	assert.Equal(t, 10, b.Burst())
	assert.Equal(t, defaultCleanupEvery, b.CleanupEvery())
	assert.Equal(t, defaultTokenBucketIdleTTL, b.idleTTL)
}

func TestTokenBucket_RejectsInvalidConfig(t *testing.T) {
	_, err := NewTokenBucket(0, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewTokenBucket(1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
