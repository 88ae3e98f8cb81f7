package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/pkg/schema"
)

func TestKey_Deterministic(t *testing.T) {
	a, err := Key("wf-1", map[string]any{"b": 2, "a": 1}, []int{1, 2})
	require.NoError(t, err)
	b, err := Key("wf-1", map[string]any{"a": 1, "b": 2}, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Key("wf-2", map[string]any{"a": 1, "b": 2}, []int{1, 2})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestKey_PartBoundaries(t *testing.T) {
	a, err := Key("ab", "c")
	require.NoError(t, err)
	b, err := Key("a", "bc")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKey_Unencodable(t *testing.T) {
	_, err := Key(make(chan int))
	assert.Error(t, err)
}

// contract runs the behaviour every Cache must share.
func contract(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v1")))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, c.Set(ctx, "k", []byte("v2")))
	got, _, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "never-set"))
}

func TestMemory_Contract(t *testing.T) {
	contract(t, NewMemory(0))
}

func TestMemory_TTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	require.NoError(t, m.Set(ctx, "b", []byte("2")))

	now = now.Add(30 * time.Second)
	_, ok, _ := m.Get(ctx, "a")
	assert.True(t, ok)

	now = now.Add(30 * time.Second)
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok, "entry expires exactly at ttl")
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Len())
}

func TestMemory_CopiesValue(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v))
	v[0] = 'x'

	got, _, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%5))
			_ = m.Set(ctx, key, []byte{byte(i)})
			_, _, _ = m.Get(ctx, key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, m.Len())
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newRedis(t *testing.T, opts ...Option) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	r := NewRedisFromClient(client, opts...)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_Contract(t *testing.T) {
	r, _ := newRedis(t)
	require.NoError(t, r.Ping(context.Background()))
	contract(t, r)
}

func TestRedis_PrefixAndTTL(t *testing.T) {
	r, mr := newRedis(t, WithPrefix("test:"), WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("v")))
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Unreachable(t *testing.T) {
	r, mr := newRedis(t)
	mr.Close()

	_, _, err := r.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeCache))
	assert.True(t, schema.IsCode(r.Ping(context.Background()), schema.ErrCodeCache))
}
