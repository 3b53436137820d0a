package listing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// commitIfLatest writes KEYS[2] only while KEYS[1] still holds the caller's token.
var commitIfLatest = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// Tracker issues monotonically increasing request tokens per browser session and view.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTracker constructs a Tracker whose counters expire after ttl of inactivity.
func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{client: client, ttl: ttl}
}

// Issue returns a token newer than every token issued before for (sessionID, view).
func (t *Tracker) Issue(ctx context.Context, sessionID, view string) (int64, error) {
	key := tokenKey(sessionID, view)
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("listing: issue token: %w", err)
	}
	return incr.Val(), nil
}

// Latest returns the newest issued token, or 0.
func (t *Tracker) Latest(ctx context.Context, sessionID, view string) (int64, error) {
	v, err := t.client.Get(ctx, tokenKey(sessionID, view)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing: latest token: %w", err)
	}
	return v, nil
}

// CommitIfLatest stores value at key only if token is still the latest for the view.
func (t *Tracker) CommitIfLatest(ctx context.Context, sessionID, view string, token int64, key string, value []byte, ttl time.Duration) (bool, error) {
	res, err := commitIfLatest.Run(ctx, t.client,
		[]string{tokenKey(sessionID, view), key},
		strconv.FormatInt(token, 10), value, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("listing: commit: %w", err)
	}
	return res == 1, nil
}

// Key names the counter of (sessionID, view), for scripts that compare tokens themselves.
func (t *Tracker) Key(sessionID, view string) string {
	return tokenKey(sessionID, view)
}

func tokenKey(sessionID, view string) string {
	return "escuchas:token:" + view + ":" + sessionID
}
