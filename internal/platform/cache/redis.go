// Package cache opens the Redis instance shared by sessions, list snapshots and view tokens.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options locate the Redis instance.
type Options struct {
	Addr     string
	Password string
	DB       int
}

const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 2 * time.Second
)

// Connect returns a client once the server answers PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: redis %s db %d: %w", opts.Addr, opts.DB, err)
	}
	return client, nil
}
