package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps values in Redis under "<namespace>:<key>" and broadcasts
// changes on the "<namespace>:changes" pub/sub channel, so every process
// pointed at the same namespace converges.
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	return &RedisBackend{client: client, namespace: namespace}
}

func (r *RedisBackend) key(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

func (r *RedisBackend) channel() string {
	return r.namespace + ":changes"
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change failed: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(), payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning so a
// Publish issued right after cannot be missed.
func (r *RedisBackend) Subscribe(ctx context.Context) (<-chan Change, error) {
	ps := r.client.Subscribe(ctx, r.channel())
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
