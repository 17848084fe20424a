// Package cache provides the aggregate cache drivers. Values are opaque bytes
// with a TTL; a missing key is reported as ErrMiss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	DriverNone      = "none"
	DriverRedis     = "redis"
	DriverMemcached = "memcached"
)

// New builds the configured driver. DriverNone returns a nil Cache.
func New(driver string, addrs []string) (Cache, error) {
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverRedis:
		if len(addrs) == 0 {
			return nil, fmt.Errorf("redis cache: no addresses")
		}
		return NewRedis(addrs), nil
	case DriverMemcached:
		if len(addrs) == 0 {
			return nil, fmt.Errorf("memcached cache: no addresses")
		}
		return NewMemcached(addrs), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}
}
