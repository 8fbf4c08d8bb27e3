// Package redis wraps go-redis with the key layout and the few primitives the
// shop shares between replicas: rate-limit windows, once-only guards,
// counters, and the durable storage keys and change channel.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/logger"
)

var errNotConnected = errors.New("redis client not initialized")

// commands is the slice of go-redis the client issues; tests swap in a fake.
type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	TTL(context.Context, string) *redis.DurationCmd
	Del(context.Context, ...string) *redis.IntCmd
	Publish(context.Context, string, any) *redis.IntCmd
}

type Client struct {
	cmd  commands
	conn *redis.Client
	keys keyspace
}

// GuardStore exposes the once-only marker operations used by side-effect guards.
type GuardStore interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	GuardKey(scope, id string) string
	Del(context.Context, ...string) error
}

// Message is a payload received on a subscribed channel.
type Message struct {
	Channel string
	Payload string
}

// New dials redis with the configured pool and verifies the connection.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_db", opts.DB), "redis connection established")
	}
	return &Client{cmd: conn, conn: conn, keys: defaultKeyspace}, nil
}

func options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case strings.TrimSpace(cfg.URL) != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case strings.TrimSpace(cfg.Address) != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}

	// values embedded in the URL win over the pool settings
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	opts.DialTimeout = firstPositive(opts.DialTimeout, cfg.DialTimeout)
	opts.ReadTimeout = firstPositive(opts.ReadTimeout, cfg.ReadTimeout)
	opts.WriteTimeout = firstPositive(opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func firstPositive(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

// Get returns the value at key; a missing key yields an error IsNil accepts.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.cmd == nil {
		return "", errNotConnected
	}
	return c.cmd.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotConnected
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Del(ctx, keys...).Err()
}

// IncrWithTTL increments key and makes sure it expires. The TTL is set on the
// first increment and repaired if an earlier expire was lost.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.cmd == nil {
		return 0, errNotConnected
	}
	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return count, err
	}
	if count > 1 {
		remaining, err := c.cmd.TTL(ctx, key).Result()
		if err != nil || remaining >= 0 {
			return count, err
		}
	}
	return count, c.cmd.Expire(ctx, key, ttl).Err()
}

// FixedWindowAllow counts one attempt in scope's current window and reports
// whether it is within limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// Publish sends payload on the namespaced channel.
func (c *Client) Publish(ctx context.Context, channel string, payload any) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Publish(ctx, c.keys.join(channel), payload).Err()
}

// Subscribe listens on channel until ctx ends or the returned close function
// runs. The message channel is closed when the subscription ends.
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan Message, func() error, error) {
	if c.conn == nil {
		return nil, nil, errNotConnected
	}
	ps := c.conn.Subscribe(ctx, c.keys.join(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan Message)
	go relay(ctx, ps.Channel(), out)
	return out, ps.Close, nil
}

func relay(ctx context.Context, src <-chan *redis.Message, out chan<- Message) {
	defer close(out)
	for {
		var msg *redis.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-src:
			if !ok {
				return
			}
			msg = m
		}
		select {
		case out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
		case <-ctx.Done():
			return
		}
	}
}

// IsNil reports whether err is the redis "key does not exist" reply.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
