package listing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestTrackerIssuesIncreasingTokens(t *testing.T) {
	_, client := newRedis(t)
	tracker := NewTracker(client, time.Minute)
	ctx := context.Background()

	first, err := tracker.Issue(ctx, "s1", "records")
	require.NoError(t, err)
	second, err := tracker.Issue(ctx, "s1", "records")
	require.NoError(t, err)
	assert.Greater(t, second, first)

	other, err := tracker.Issue(ctx, "s1", "users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	latest, err := tracker.Latest(ctx, "s1", "records")
	require.NoError(t, err)
	assert.Equal(t, second, latest)
}

func TestCommitIfLatestDropsSupersededResult(t *testing.T) {
	mr, client := newRedis(t)
	tracker := NewTracker(client, time.Minute)
	ctx := context.Background()

	stale, _ := tracker.Issue(ctx, "s1", "dashboard")
	fresh, _ := tracker.Issue(ctx, "s1", "dashboard")

	ok, err := tracker.CommitIfLatest(ctx, "s1", "dashboard", fresh, "k", []byte("fresh"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tracker.CommitIfLatest(ctx, "s1", "dashboard", stale, "k", []byte("stale"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestSnapshotsRefreshAndLoad(t *testing.T) {
	_, client := newRedis(t)
	snaps := NewSnapshots[string](client, NewTracker(client, time.Minute), "records", time.Minute)
	ctx := context.Background()
	scope := Scope{SessionID: "s1", UserID: 7}

	snap, err := snaps.Refresh(ctx, scope, func(context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	require.NoError(t, err)
	require.True(t, snap.Committed)

	loaded, ok, err := snaps.Load(ctx, scope, snap.Ref())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, loaded.Items)

	_, ok, err = snaps.Load(ctx, Scope{SessionID: "s1", UserID: 8}, snap.Ref())
	require.NoError(t, err)
	assert.False(t, ok, "another identity must not see the snapshot")

	_, ok, _ = snaps.Load(ctx, scope, "")
	assert.False(t, ok)
	_, ok, _ = snaps.Load(ctx, scope, "garbage")
	assert.False(t, ok)
}

func TestSnapshotsSupersededRefreshIsNotStored(t *testing.T) {
	_, client := newRedis(t)
	snaps := NewSnapshots[string](client, NewTracker(client, time.Minute), "users", time.Minute)
	ctx := context.Background()
	scope := Scope{SessionID: "s1", UserID: 1}

	var fresh *Snapshot[string]
	slow, err := snaps.Refresh(ctx, scope, func(ctx context.Context) ([]string, error) {
		var err error
		fresh, err = snaps.Refresh(ctx, scope, func(context.Context) ([]string, error) {
			return []string{"new"}, nil
		})
		return []string{"old"}, err
	})
	require.NoError(t, err)
	assert.False(t, slow.Committed)
	assert.Equal(t, "", slow.Ref())
	require.True(t, fresh.Committed)

	loaded, ok, err := snaps.Load(ctx, scope, fresh.Ref())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, loaded.Items)
}

func TestSnapshotsExpire(t *testing.T) {
	mr, client := newRedis(t)
	snaps := NewSnapshots[int](client, NewTracker(client, time.Hour), "records", time.Minute)
	ctx := context.Background()
	scope := Scope{SessionID: "s", UserID: 1}
	snap, err := snaps.Refresh(ctx, scope, func(context.Context) ([]int, error) { return []int{1}, nil })
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, ok, err := snaps.Load(ctx, scope, snap.Ref())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotsFetchErrorPropagates(t *testing.T) {
	_, client := newRedis(t)
	snaps := NewSnapshots[int](client, NewTracker(client, time.Hour), "records", time.Minute)
	boom := errors.New("boom")
	_, err := snaps.Refresh(context.Background(), Scope{SessionID: "s"}, func(context.Context) ([]int, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestReplaceKeepsToken(t *testing.T) {
	_, client := newRedis(t)
	snaps := NewSnapshots[string](client, NewTracker(client, time.Hour), "users", time.Minute)
	ctx := context.Background()
	scope := Scope{SessionID: "s", UserID: 1}
	snap, err := snaps.Refresh(ctx, scope, func(context.Context) ([]string, error) { return []string{"auditor"}, nil })
	require.NoError(t, err)

	snap.Items[0] = "admin"
	ok, err := snaps.Replace(ctx, scope, snap)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, ok, err := snaps.Load(ctx, scope, snap.Ref())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"admin"}, loaded.Items)
}
