package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *SessionManager {
	t.Helper()
	sm, _ := newManagerWithServer(t)
	return sm
}

func newManagerWithServer(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "sid", "secret", time.Hour, false), mr
}

func commitCookie(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rr, sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(req.Context(), req)
	require.NoError(t, err)
	assert.True(t, sess.IsNew())
	sess.Set("k", "v")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "hecho"})
	cookie := commitCookie(t, sm, sess)
	assert.NotEqual(t, sess.ID, cookie.Value)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(req.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "v", loaded.Get("k"))
	require.NotNil(t, loaded.PopFlash())
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	sm := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(req.Context(), req)
	require.NoError(t, err)
	sess.Set("k", "v")
	cookie := commitCookie(t, sm, sess)

	for _, value := range []string{sess.ID, sess.ID + ".forged", "other" + cookie.Value[len(sess.ID):]} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: value})
		loaded, err := sm.Load(req.Context(), req)
		require.NoError(t, err)
		assert.True(t, loaded.IsNew(), value)
		assert.Empty(t, loaded.Get("k"))
	}
}

func TestSessionJSONValues(t *testing.T) {
	sess := &Session{}
	require.NoError(t, sess.SetJSON("form", map[string]int{"page": 2}))
	var got map[string]int
	assert.True(t, sess.GetJSON("form", &got))
	assert.Equal(t, 2, got["page"])
	assert.False(t, sess.GetJSON("missing", &got))
	sess.Set("broken", "{")
	assert.False(t, sess.GetJSON("broken", &got))
}

func TestSessionRenewMovesToFreshID(t *testing.T) {
	sm, mr := newManagerWithServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(req.Context(), req)
	require.NoError(t, err)
	sess.Set("k", "v")
	cookie := commitCookie(t, sm, sess)
	oldID := sess.ID

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(req.Context(), req)
	require.NoError(t, err)
	loaded.Renew()
	renewed := commitCookie(t, sm, loaded)

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("escuchas:session:"+oldID))
	assert.True(t, mr.Exists("escuchas:session:"+loaded.ID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(renewed)
	again, err := sm.Load(req.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, "v", again.Get("k"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	stale, err := sm.Load(req.Context(), req)
	require.NoError(t, err)
	assert.True(t, stale.IsNew())
}
