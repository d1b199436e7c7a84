package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// PingTimeout bounds the startup ping; zero means 5s.
	PingTimeout time.Duration
}

// OpenRedis returns a client that answered a PING.
func OpenRedis(ctx context.Context, o Options) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})
	timeout := o.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}
