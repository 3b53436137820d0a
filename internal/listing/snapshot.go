package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scope identifies whose snapshot is addressed: one browser session and one identity.
type Scope struct {
	SessionID string
	UserID    int64
}

// Snapshot is a fetched collection held between requests of one view.
type Snapshot[T any] struct {
	Token     int64     `json:"token"`
	FetchedAt time.Time `json:"fetched_at"`
	Items     []T       `json:"items"`
	// Committed is false when a newer fetch superseded this one.
	Committed bool `json:"-"`
}

// Ref is the value carried by the snap query parameter.
func (s *Snapshot[T]) Ref() string {
	if s == nil || !s.Committed {
		return ""
	}
	return strconv.FormatInt(s.Token, 10)
}

// Snapshots stores the latest fetch of a view in Redis.
type Snapshots[T any] struct {
	client  *redis.Client
	tracker *Tracker
	view    string
	ttl     time.Duration
	now     func() time.Time
}

// NewSnapshots constructs a snapshot store for view.
func NewSnapshots[T any](client *redis.Client, tracker *Tracker, view string, ttl time.Duration) *Snapshots[T] {
	return &Snapshots[T]{client: client, tracker: tracker, view: view, ttl: ttl, now: time.Now}
}

// Load returns the stored snapshot when ref names it. A missing, expired or replaced
// snapshot reports false.
func (s *Snapshots[T]) Load(ctx context.Context, scope Scope, ref string) (*Snapshot[T], bool, error) {
	if ref == "" {
		return nil, false, nil
	}
	token, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, false, nil
	}
	raw, err := s.client.Get(ctx, s.key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("listing: load snapshot: %w", err)
	}
	var snap Snapshot[T]
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, nil
	}
	if snap.Token != token {
		return nil, false, nil
	}
	snap.Committed = true
	return &snap, true, nil
}

// Refresh issues a request token, runs fetch and stores the result unless a newer
// refresh was issued meanwhile. The fetched snapshot is returned either way.
func (s *Snapshots[T]) Refresh(ctx context.Context, scope Scope, fetch func(context.Context) ([]T, error)) (*Snapshot[T], error) {
	token, err := s.tracker.Issue(ctx, s.tokenScope(scope), s.view)
	if err != nil {
		return nil, err
	}
	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot[T]{Token: token, FetchedAt: s.now(), Items: items}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("listing: encode snapshot: %w", err)
	}
	committed, err := s.tracker.CommitIfLatest(ctx, s.tokenScope(scope), s.view, token, s.key(scope), raw, s.ttl)
	if err != nil {
		return nil, err
	}
	snap.Committed = committed
	return snap, nil
}

// Replace rewrites the items of a committed snapshot in place, keeping its token.
func (s *Snapshots[T]) Replace(ctx context.Context, scope Scope, snap *Snapshot[T]) (bool, error) {
	if snap == nil {
		return false, nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("listing: encode snapshot: %w", err)
	}
	ok, err := s.tracker.CommitIfLatest(ctx, s.tokenScope(scope), s.view, snap.Token, s.key(scope), raw, s.ttl)
	if err != nil {
		return false, err
	}
	snap.Committed = ok
	return ok, nil
}

func (s *Snapshots[T]) key(scope Scope) string {
	return "escuchas:snapshot:" + s.view + ":" + s.tokenScope(scope)
}

func (s *Snapshots[T]) tokenScope(scope Scope) string {
	return scope.SessionID + ":" + strconv.FormatInt(scope.UserID, 10)
}
