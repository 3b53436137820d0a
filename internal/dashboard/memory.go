package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pym-escuchas/escuchas/internal/listing"
)

const trackerView = "dashboard"

// Memory remembers the last selected period per browser session. A selection only
// sticks when no newer request for the same browser session was issued meanwhile.
type Memory struct {
	client  *redis.Client
	tracker *listing.Tracker
	ttl     time.Duration
}

// NewMemory constructs a Memory.
func NewMemory(client *redis.Client, tracker *listing.Tracker, ttl time.Duration) *Memory {
	return &Memory{client: client, tracker: tracker, ttl: ttl}
}

// Issue returns the token of a new period request.
func (m *Memory) Issue(ctx context.Context, sessionID string) (int64, error) {
	return m.tracker.Issue(ctx, sessionID, trackerView)
}

// Remember stores p if token is still the latest request of the session.
func (m *Memory) Remember(ctx context.Context, sessionID string, token int64, p Period) (bool, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("dashboard: encode period: %w", err)
	}
	return m.tracker.CommitIfLatest(ctx, sessionID, trackerView, token, m.key(sessionID), payload, m.ttl)
}

// Recall returns the remembered period of the session.
func (m *Memory) Recall(ctx context.Context, sessionID string) (Period, bool, error) {
	raw, err := m.client.Get(ctx, m.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Period{}, false, nil
	}
	if err != nil {
		return Period{}, false, fmt.Errorf("dashboard: recall period: %w", err)
	}
	var p Period
	if err := json.Unmarshal(raw, &p); err != nil {
		return Period{}, false, fmt.Errorf("dashboard: decode period: %w", err)
	}
	return p, true, nil
}

func (m *Memory) key(sessionID string) string {
	return "escuchas:dashboard:period:" + sessionID
}
