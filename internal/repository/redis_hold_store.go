package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// acquireScript sets the hold when absent, refreshes the TTL when the
// caller already owns it, and otherwise reports the current holder.
// Returns {granted, holder}.
var acquireScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
    redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
    return {1, ARGV[1]}
end
if cur == ARGV[1] then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
    return {1, cur}
end
return {0, cur}
`)

// releaseScript deletes the hold only when it belongs to ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// extendScript moves the expiry of a hold owned by ARGV[1] to ARGV[2] ms.
var extendScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// RedisHoldStore keeps seat holds as plain string keys with a TTL.  Every
// mutation is a single Lua script so ownership checks and writes cannot
// interleave with other clients.
type RedisHoldStore struct {
	rdb    *redis.Client
	tracer trace.Tracer
}

// NewRedisHoldStore returns a hold store bound to the given client.
func NewRedisHoldStore(rdb *redis.Client) *RedisHoldStore {
	if rdb == nil {
		panic("nil redis client passed to NewRedisHoldStore")
	}
	return &RedisHoldStore{rdb: rdb, tracer: otel.Tracer("showtime-booking/holdstore")}
}

// Acquire claims key for owner.  It reports the resulting holder and
// whether the caller holds it now.
func (s *RedisHoldStore) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (string, bool, error) {
	ctx, span := s.start(ctx, "holdstore.acquire", key)
	defer span.End()

	vals, err := acquireScript.Run(ctx, s.rdb, []string{key}, owner, ttl.Milliseconds()).Slice()
	if err != nil {
		return "", false, s.fail(span, fmt.Errorf("acquire %s: %w", key, err))
	}
	if len(vals) != 2 {
		return "", false, s.fail(span, fmt.Errorf("acquire %s: unexpected script result %v", key, vals))
	}
	granted := toInt64(vals[0]) == 1
	holder, _ := vals[1].(string)
	span.SetAttributes(attribute.Bool("granted", granted))
	return holder, granted, nil
}

// Release deletes key if owner holds it.
func (s *RedisHoldStore) Release(ctx context.Context, key, owner string) (bool, error) {
	ctx, span := s.start(ctx, "holdstore.release", key)
	defer span.End()

	n, err := releaseScript.Run(ctx, s.rdb, []string{key}, owner).Int64()
	if err != nil {
		return false, s.fail(span, fmt.Errorf("release %s: %w", key, err))
	}
	return n == 1, nil
}

// Extend sets a new TTL on key if owner holds it.
func (s *RedisHoldStore) Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ctx, span := s.start(ctx, "holdstore.extend", key)
	defer span.End()

	n, err := extendScript.Run(ctx, s.rdb, []string{key}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, s.fail(span, fmt.Errorf("extend %s: %w", key, err))
	}
	return n == 1, nil
}

// Get returns the holder of each key in order, "" where no hold exists.
func (s *RedisHoldStore) Get(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	ctx, span := s.start(ctx, "holdstore.get", keys[0])
	defer span.End()
	span.SetAttributes(attribute.Int("keys", len(keys)))

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("mget holds: %w", err))
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = str
		}
	}
	return out, nil
}

// Scan returns every live hold whose key starts with prefix.
func (s *RedisHoldStore) Scan(ctx context.Context, prefix string) (map[string]string, error) {
	ctx, span := s.start(ctx, "holdstore.scan", prefix)
	defer span.End()

	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, s.fail(span, fmt.Errorf("scan %s: %w", prefix, err))
	}
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	holders, err := s.Get(ctx, keys...)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		// keys may lapse between SCAN and MGET
		if holders[i] != "" {
			out[k] = holders[i]
		}
	}
	return out, nil
}

func (s *RedisHoldStore) start(ctx context.Context, name, key string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	span.SetAttributes(attribute.String("hold.key", key))
	return ctx, span
}

func (s *RedisHoldStore) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		var n int64
		_, _ = fmt.Sscan(t, &n)
		return n
	}
	return 0
}
