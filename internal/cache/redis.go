package cache

import (
	"context"
	"errors"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/rendis/flowlens/pkg/schema"
)

// Redis implements Cache on a Redis server.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Redis)

// WithTTL sets the expiration for cached values.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis connects to the server at address.
func NewRedis(address, password string, db int, opts ...Option) *Redis {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(client, opts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, opts ...Option) *Redis {
	r := &Redis{
		client: client,
		prefix: "flowlens:view:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return schema.NewError(schema.ErrCodeCache, "redis unreachable").WithCause(err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, schema.NewError(schema.ErrCodeCache, "redis get").WithCause(err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return schema.NewError(schema.ErrCodeCache, "redis set").WithCause(err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return schema.NewError(schema.ErrCodeCache, "redis delete").WithCause(err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
