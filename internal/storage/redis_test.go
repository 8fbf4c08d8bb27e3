package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcut/chickenshop/pkg/logger"
	"github.com/freshcut/chickenshop/pkg/redis"
)

// fakeRedis keeps values in memory and fans published payloads out to
// subscribers, standing in for a shared Redis server.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	subs   []chan redis.Message
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value.(string)
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeRedis) Publish(_ context.Context, channel string, payload any) error {
	f.mu.Lock()
	subs := append([]chan redis.Message(nil), f.subs...)
	f.mu.Unlock()
	for _, ch := range subs {
		ch <- redis.Message{Channel: channel, Payload: payload.(string)}
	}
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, channel string) (<-chan redis.Message, func() error, error) {
	ch := make(chan redis.Message, 16)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, c := range f.subs {
			if c == ch {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return ch, func() error { return nil }, nil
}

func (f *fakeRedis) StorageKey(namespace, key string) string {
	return "cs:storage:" + namespace + ":" + key
}

func (f *fakeRedis) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func TestRedisBackendPropagatesAcrossReplicas(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared := newFakeRedis()
	replicaA, err := NewRedis(shared, "cs", "storage_changes", logger.Nop())
	require.NoError(t, err)
	replicaB, err := NewRedis(shared, "cs", "storage_changes", logger.Nop())
	require.NoError(t, err)

	go func() { _ = replicaA.Run(ctx) }()
	go func() { _ = replicaB.Run(ctx) }()
	require.Eventually(t, func() bool { return shared.subscribers() == 2 }, time.Second, 5*time.Millisecond)

	tabA := newTab(t, replicaA, "replica-a")
	tabB := newTab(t, replicaB, "replica-b")

	var mu sync.Mutex
	var seenByA, seenByB []Change
	defer tabA.Watch(func(ch Change) { mu.Lock(); seenByA = append(seenByA, ch); mu.Unlock() })()
	defer tabB.Watch(func(ch Change) { mu.Lock(); seenByB = append(seenByB, ch); mu.Unlock() })()

	require.NoError(t, tabA.Set(ctx, CartKey("u1"), `[{"qty":1}]`))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seenByB) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Empty(t, seenByA)
	assert.Equal(t, CartKey("u1"), seenByB[0].Key)
	require.NotNil(t, seenByB[0].Value)
	assert.Equal(t, `[{"qty":1}]`, *seenByB[0].Value)
	mu.Unlock()

	v, ok, err := tabB.Get(ctx, CartKey("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"qty":1}]`, v)
}

func TestRedisBackendMissingKey(t *testing.T) {
	backend, err := NewRedis(newFakeRedis(), "cs", "storage_changes", nil)
	require.NoError(t, err)

	_, ok, err := backend.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisValidates(t *testing.T) {
	_, err := NewRedis(nil, "cs", "storage_changes", nil)
	require.Error(t, err)
	_, err = NewRedis(newFakeRedis(), "cs", "", nil)
	require.Error(t, err)
}
