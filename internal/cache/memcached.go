package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

var _ Cache = (*Memcached)(nil)

type Memcached struct {
	client *memcache.Client
}

func NewMemcached(addrs []string) *Memcached {
	c := memcache.New(addrs...)
	c.Timeout = time.Second
	return &Memcached{client: c}
}

// memcache has no context support; ctx is only checked before the call.
func (m *Memcached) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

func (m *Memcached) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.client.Set(&memcache.Item{Key: key, Value: value, Expiration: expiration(ttl)})
}

func (m *Memcached) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.client.Ping()
}

func (m *Memcached) Close() error {
	return m.client.Close()
}

// expiration rounds ttl up to whole seconds; memcache treats 0 as "never".
func expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	secs := int32((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
