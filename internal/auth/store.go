package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/shared"
)

const (
	sessionKeyStatus   = "auth.status"
	sessionKeyIdentity = "auth.identity"
	sessionKeyCookies  = "auth.cookies"

	statusAuthenticated   = "authenticated"
	statusUnauthenticated = "unauthenticated"

	// checkResultTTL bounds how long a check nobody waited for stays claimable.
	checkResultTTL = time.Minute
)

// Store keeps the authenticated identity and the backend cookies of each browser session.
type Store struct {
	client *backend.Client
	logger *slog.Logger
	wait   time.Duration
	group  singleflight.Group

	mu      sync.Mutex
	results map[string]heldResult
}

// NewStore constructs a Store. wait bounds how long a request blocks on the shared
// session check before the guard reports StatusChecking.
func NewStore(client *backend.Client, logger *slog.Logger, wait time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger, wait: wait, results: map[string]heldResult{}}
}

type checkResult struct {
	identity *Identity
	cookies  []backend.StoredCookie
}

type heldResult struct {
	result  checkResult
	expires time.Time
}

// hold keeps the outcome of a finished check until a request of the session claims it.
func (s *Store) hold(sessionID string, result checkResult) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, held := range s.results {
		if now.After(held.expires) {
			delete(s.results, id)
		}
	}
	s.results[sessionID] = heldResult{result: result, expires: now.Add(checkResultTTL)}
}

func (s *Store) claim(sessionID string) (checkResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.results[sessionID]
	delete(s.results, sessionID)
	if !ok || time.Now().After(held.expires) {
		return checkResult{}, false
	}
	return held.result, true
}

func (s *Store) apply(sess *shared.Session, result checkResult) Status {
	s.storeCookies(sess, result.cookies)
	if result.identity == nil {
		s.clear(sess)
		return StatusUnauthenticated
	}
	s.setIdentity(sess, result.identity)
	return StatusAuthenticated
}

// CheckSession asks the backend whether the browser session has a live backend session.
// Concurrent requests of one browser session share a single call. A request that
// stops waiting leaves the outcome for the session's next request.
func (s *Store) CheckSession(ctx context.Context, sess *shared.Session) Status {
	if sess == nil {
		return StatusUnauthenticated
	}
	if result, ok := s.claim(sess.ID); ok {
		return s.apply(sess, result)
	}
	cookies := s.cookies(sess)
	ch := s.group.DoChan(sess.ID, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.client.Timeout())
		defer cancel()
		conn := s.client.Conn(cookies)
		var resp sessionResponse
		err := conn.Get(callCtx, "/api/check_session", nil, &resp)
		result := checkResult{cookies: conn.Cookies()}
		if err != nil {
			if !errors.Is(err, backend.ErrUnauthenticated) {
				s.logger.Info("session check failed", slog.Any("error", err))
			}
		} else if resp.Success && resp.User != nil {
			result.identity = resp.User
		}
		s.hold(sess.ID, result)
		return result, nil
	})

	timer := time.NewTimer(s.wait)
	defer timer.Stop()
	select {
	case res := <-ch:
		s.claim(sess.ID)
		result, _ := res.Val.(checkResult)
		return s.apply(sess, result)
	case <-timer.C:
		return StatusChecking
	case <-ctx.Done():
		return StatusChecking
	}
}

// Ensure returns the session status, running the session check the first time.
func (s *Store) Ensure(ctx context.Context, sess *shared.Session) Status {
	if status := s.Status(sess); status != StatusChecking {
		return status
	}
	return s.CheckSession(ctx, sess)
}

// Login authenticates against the backend. On failure the browser session is left
// untouched and the returned error carries a displayable message.
func (s *Store) Login(ctx context.Context, sess *shared.Session, creds Credentials) (*Identity, error) {
	conn := s.client.Conn(nil)
	var resp sessionResponse
	if err := conn.Post(ctx, "/api/login", creds, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		message := resp.Message
		if message == "" {
			message = "Error en el inicio de sesión. Verifique sus credenciales."
		}
		return nil, &backend.Error{Message: message, Err: backend.ErrRejected}
	}
	if sess != nil {
		sess.Renew()
		s.storeCookies(sess, conn.Cookies())
		s.setIdentity(sess, resp.User)
	}
	return resp.User, nil
}

// Logout ends the backend session. The local identity is cleared even when the call fails.
func (s *Store) Logout(ctx context.Context, sess *shared.Session) {
	if sess == nil {
		return
	}
	conn := s.client.Conn(s.cookies(sess))
	if err := conn.Post(ctx, "/api/logout", nil, nil); err != nil {
		s.logger.Warn("backend logout failed", slog.Any("error", err))
	}
	s.clear(sess)
	sess.Delete(sessionKeyCookies)
}

// Expire drops the identity after the backend reported the session as gone.
func (s *Store) Expire(sess *shared.Session) {
	if sess == nil {
		return
	}
	s.clear(sess)
}

// Status reports the session state without contacting the backend.
func (s *Store) Status(sess *shared.Session) Status {
	if sess == nil {
		return StatusUnauthenticated
	}
	switch sess.Get(sessionKeyStatus) {
	case statusAuthenticated:
		if s.Current(sess) != nil {
			return StatusAuthenticated
		}
		return StatusUnauthenticated
	case statusUnauthenticated:
		return StatusUnauthenticated
	default:
		return StatusChecking
	}
}

// Current returns the stored identity or nil.
func (s *Store) Current(sess *shared.Session) *Identity {
	if sess == nil || sess.Get(sessionKeyStatus) != statusAuthenticated {
		return nil
	}
	var identity Identity
	if !sess.GetJSON(sessionKeyIdentity, &identity) {
		return nil
	}
	return &identity
}

// Call runs fn with a backend connection carrying the session's cookies, persists any
// cookie the backend rotated and expires the identity on a 401.
func (s *Store) Call(ctx context.Context, sess *shared.Session, fn func(backend.Caller) error) error {
	conn := s.client.Conn(s.cookies(sess))
	err := fn(conn)
	if sess != nil {
		s.storeCookies(sess, conn.Cookies())
	}
	if errors.Is(err, backend.ErrUnauthenticated) {
		s.Expire(sess)
	}
	return err
}

func (s *Store) setIdentity(sess *shared.Session, identity *Identity) {
	if err := sess.SetJSON(sessionKeyIdentity, identity); err != nil {
		s.logger.Error("store identity", slog.Any("error", err))
		return
	}
	sess.Set(sessionKeyStatus, statusAuthenticated)
}

func (s *Store) clear(sess *shared.Session) {
	sess.Delete(sessionKeyIdentity)
	sess.Set(sessionKeyStatus, statusUnauthenticated)
}

func (s *Store) cookies(sess *shared.Session) []backend.StoredCookie {
	if sess == nil {
		return nil
	}
	var cookies []backend.StoredCookie
	sess.GetJSON(sessionKeyCookies, &cookies)
	return cookies
}

func (s *Store) storeCookies(sess *shared.Session, cookies []backend.StoredCookie) {
	if len(cookies) == 0 {
		return
	}
	if err := sess.SetJSON(sessionKeyCookies, cookies); err != nil {
		s.logger.Error("store backend cookies", slog.Any("error", err))
	}
}
