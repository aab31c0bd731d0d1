package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redislib.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PipelineLock is a SET NX PX lease that keeps two instances from running the
// daily pipeline at the same time.
type PipelineLock struct {
	client *redislib.Client
	key    string
	ttl    time.Duration
}

// NewPipelineLock creates a Redis-backed lease.
func NewPipelineLock(client *redislib.Client, key string, ttl time.Duration) *PipelineLock {
	if key == "" {
		key = "pipeline"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PipelineLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		ttl:    ttl,
	}
}

// Acquire takes the lease. ok is false when another holder has it.
func (l *PipelineLock) Acquire(ctx context.Context) (func(context.Context), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}
