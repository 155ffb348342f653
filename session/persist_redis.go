package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisPersister stores the record under a single Redis key. Intended for
// desktop and kiosk builds that share a local Redis.
type RedisPersister struct {
	redis redis.UniversalClient
	key   string
}

// NewRedisPersister returns a persister using key as the storage name.
func NewRedisPersister(client redis.UniversalClient, key string) *RedisPersister {
	return &RedisPersister{
		redis: client,
		key:   key,
	}
}

func (p *RedisPersister) Load(ctx context.Context) ([]byte, error) {
	data, err := p.redis.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

func (p *RedisPersister) Save(ctx context.Context, data []byte) error {
	if err := p.redis.Set(ctx, p.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
