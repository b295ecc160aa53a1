package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore agrega decisões de admissão em hashes do Redis, para que várias
// réplicas do gateway somem no mesmo lugar.
//
// Layout (prefixo padrão "ratelimit:stats"):
//
//	<prefix>:total                  allowed/denied (cumulativo, não expira)
//	<prefix>:minute:<yyyymmddhhmm>  allowed/denied por minuto (expira em ttl)
//	<prefix>:limiter                <nome>:allowed / <nome>:denied
//	<prefix>:route                  "<METHOD> <path>:allowed" / ":denied"
//	<prefix>:key:<key>              allowed/denied por chave (opcional, expira em ttl)
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	ttl    time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys devolve as chaves Redis que Record incrementaria para o evento.
func (s *RedisStatsStore) Keys(ev domain.StatsEvent) []string {
	keys := []string{s.prefix + ":total"}
	if s.bucket == "minute" {
		keys = append(keys, s.minuteKey(ev.At))
	}
	if ev.Limiter != "" {
		keys = append(keys, s.prefix+":limiter")
	}
	if routeField(ev) != "" {
		keys = append(keys, s.prefix+":route")
	}
	if k := s.keyKey(ev.Key); k != "" {
		keys = append(keys, k)
	}
	return keys
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if s.bucket == "minute" {
		bucketKey := s.minuteKey(ev.At)
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if ev.Limiter != "" {
		pipe.HIncrBy(ctx, s.prefix+":limiter", ev.Limiter+":"+field, 1)
	}

	if rf := routeField(ev); rf != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", rf+":"+field, 1)
	}

	if keyKey := s.keyKey(ev.Key); keyKey != "" {
		pipe.HIncrBy(ctx, keyKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, keyKey, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) minuteKey(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func (s *RedisStatsStore) keyKey(key domain.Key) string {
	if !s.trackKeys {
		return ""
	}
	k := strings.TrimSpace(string(key))
	if k == "" {
		return ""
	}
	return s.prefix + ":key:" + k
}

func routeField(ev domain.StatsEvent) string {
	return strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
}
