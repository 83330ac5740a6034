package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// setIfHigherScript stores ARGV[1] unless the current value is higher.
// ARGV[2] is the TTL in milliseconds, 0 meaning no expiry.
var setIfHigherScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if current and tonumber(current) > tonumber(ARGV[1]) then
		return 0
	end
	if tonumber(ARGV[2]) > 0 then
		redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	else
		redis.call("SET", KEYS[1], ARGV[1])
	end
	return 1
`)

// RedisStore keeps cursors in the cache shared with the API fleet.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// ShardNonceKey is the cache key of a shard's cursor.
func ShardNonceKey(shard uint32) string {
	return fmt.Sprintf("transactionProcessor:shardNonce:%d", shard)
}

func (s *RedisStore) key(shard uint32) string {
	if s.prefix == "" {
		return ShardNonceKey(shard)
	}

	return s.prefix + ":" + ShardNonceKey(shard)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, shard uint32) (uint64, bool, error) {
	val, err := s.client.Get(ctx, s.key(shard)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to get cursor for shard %d: %w", shard, err)
	}

	nonce, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid cursor %q for shard %d: %w", val, shard, err)
	}

	return nonce, true, nil
}

func (s *RedisStore) Set(ctx context.Context, shard uint32, nonce uint64) error {
	stored, err := setIfHigherScript.Run(ctx, s.client,
		[]string{s.key(shard)},
		strconv.FormatUint(nonce, 10),
		s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to set cursor for shard %d: %w", shard, err)
	}

	if stored == 0 {
		return ErrCursorBackwards
	}

	return nil
}

// Close is a no-op, the client is shared.
func (s *RedisStore) Close() error {
	return nil
}
