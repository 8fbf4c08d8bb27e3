package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/redis"
)

const resubscribeDelay = time.Second

// RedisClient is the subset of pkg/redis used by the Redis backend.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channel string) (<-chan redis.Message, func() error, error)
	StorageKey(namespace, key string) string
}

// Redis stores values in Redis and broadcasts every write on a pub/sub
// channel, so every replica sees every other replica's writes.
type Redis struct {
	client    RedisClient
	namespace string
	channel   string
	logg      *logger.Logger

	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    int
}

func NewRedis(client RedisClient, namespace, channel string, logg *logger.Logger) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if channel == "" {
		return nil, errors.New("storage channel is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Redis{client: client, namespace: namespace, channel: channel, logg: logg}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.client.StorageKey(r.namespace, key))
	if redis.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value, origin string) error {
	if err := r.client.Set(ctx, r.client.StorageKey(r.namespace, key), value, 0); err != nil {
		return fmt.Errorf("storage set %s: %w", key, err)
	}
	v := value
	return r.announce(ctx, Change{Key: key, Origin: origin, Value: &v})
}

func (r *Redis) Remove(ctx context.Context, key, origin string) error {
	if err := r.client.Del(ctx, r.client.StorageKey(r.namespace, key)); err != nil {
		return fmt.Errorf("storage remove %s: %w", key, err)
	}
	return r.announce(ctx, Change{Key: key, Origin: origin})
}

func (r *Redis) Listen(fn Listener) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners = append(r.listeners, listenerEntry{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			for i, entry := range r.listeners {
				if entry.id == id {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					break
				}
			}
			r.mu.Unlock()
		})
	}
}

// Run consumes the change channel until ctx is cancelled, resubscribing after
// connection failures.
func (r *Redis) Run(ctx context.Context) error {
	ctx = r.logg.WithField(ctx, "channel", r.channel)
	for {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.logg.WarnErr(ctx, "storage change subscription dropped", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}
	}
}

func (r *Redis) consume(ctx context.Context) error {
	msgs, closeFn, err := r.client.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	for msg := range msgs {
		var ch Change
		if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
			r.logg.WarnErr(ctx, "discarding malformed storage change", err)
			continue
		}
		r.dispatch(ch)
	}
	return errors.New("subscription closed")
}

func (r *Redis) dispatch(ch Change) {
	r.mu.RLock()
	listeners := make([]Listener, len(r.listeners))
	for i, entry := range r.listeners {
		listeners[i] = entry.fn
	}
	r.mu.RUnlock()
	notify(listeners, ch)
}

func (r *Redis) announce(ctx context.Context, ch Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode storage change: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, string(payload)); err != nil {
		return fmt.Errorf("publish storage change: %w", err)
	}
	return nil
}
