package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/probelink/probelink/internal/obs"
	"github.com/redis/go-redis/v9"
)

// redisKey holds the session list; LPUSH keeps it newest first.
const redisKey = "probelink:sessions"

// redisStore implements Store on a Redis list so session history is shared
// across bridge restarts (and across bridges, if several point at the same
// instance).
type redisStore struct {
	client *redis.Client
	keep   int
}

var _ Store = (*redisStore)(nil)

func newRedisStore(opts Options) (*redisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: opts.RedisAddr, Password: opts.RedisPassword, DB: opts.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &redisStore{client: rdb, keep: opts.Keep}, nil
}

func (r *redisStore) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	ctx := context.Background()
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, redisKey, data)
	pipe.LTrim(ctx, redisKey, 0, int64(r.keep)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append failed: %w", err)
	}
	return nil
}

func (r *redisStore) Recent(n int) ([]Record, error) {
	if n <= 0 || n > r.keep {
		n = r.keep
	}
	ctx := context.Background()
	vals, err := r.client.LRange(ctx, redisKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range failed: %w", err)
	}
	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			obs.Error("journal.decode", obs.Fields{"err": err.Error()})
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *redisStore) Close() error { return r.client.Close() }
