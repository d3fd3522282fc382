package viewstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the state under one key per user, so several terminals or
// processes share the same view.
type RedisStore struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisStore stores under "<StorageKey>:<owner>". A zero ttl keeps the key forever.
func NewRedisStore(client redis.Cmdable, owner string, ttl time.Duration) *RedisStore {
	key := StorageKey
	if owner != "" {
		key = StorageKey + ":" + owner
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (r *RedisStore) Key() string {
	return r.key
}

func (r *RedisStore) Load(ctx context.Context) (State, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("redis get view state: %w", err)
	}
	s, err := Decode(data)
	if err != nil {
		return State{}, false, err
	}
	return s, true, nil
}

func (r *RedisStore) Save(ctx context.Context, s State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set view state: %w", err)
	}
	return nil
}
