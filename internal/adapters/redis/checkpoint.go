// Package redis provides a go-redis-backed checkpoint.Store (spec
// §4.8/§8.9), the production alternative to checkpoint.MemoryStore for
// a multi-process deployment where subscriber offsets must survive a
// process restart without owning a full database. Grounded on the
// teacher's common/mredis.RedisConnection connection-hub shape and
// RedisConsumerRepository's Set/Get pattern, generalized from
// string-value TTL caching to a monotonic sequence upsert via a Lua
// script (go-redis's own recommended compare-and-set idiom, since a
// plain SET would silently let a stale, lower sequence regress the
// stored value).
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/LerianStudio/midaz-flow/internal/checkpoint"
	goredis "github.com/redis/go-redis/v9"
)

// advanceScript sets key to seq only when seq is greater than whatever
// is currently stored (or nothing is stored yet), returning 1 if it
// changed the value and 0 otherwise — the same monotonic-advance
// contract checkpoint.MemoryStore.Advance implements in-process.
var advanceScript = goredis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false or tonumber(ARGV[1]) > tonumber(cur) then
	redis.call("SET", KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// Store is a redis-backed checkpoint.Store sharing one *goredis.Client
// across every key.
type Store struct {
	client *goredis.Client
}

// Connect opens a client against addr (a redis:// or rediss:// URL) and
// pings it.
func Connect(ctx context.Context, addr string) (*Store, error) {
	opts, err := goredis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Store{client: client}, nil
}

var _ checkpoint.Store = (*Store)(nil)

func redisKey(key checkpoint.Key) string {
	return fmt.Sprintf("midaz-flow:checkpoint:%s:%s:%s", key.Subscriber, key.Domain, key.Root)
}

func (s *Store) Get(ctx context.Context, key checkpoint.Key) (uint32, bool, error) {
	val, err := s.client.Get(ctx, redisKey(key)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("redis: get checkpoint: %w", err)
	}

	seq, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse checkpoint value %q: %w", val, err)
	}

	return uint32(seq), true, nil
}

func (s *Store) Advance(ctx context.Context, key checkpoint.Key, seq uint32) (bool, error) {
	changed, err := advanceScript.Run(ctx, s.client, []string{redisKey(key)}, seq).Int()
	if err != nil {
		return false, fmt.Errorf("redis: advance checkpoint: %w", err)
	}

	return changed == 1, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
