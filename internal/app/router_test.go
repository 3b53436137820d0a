package app

import (
	"encoding/json"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/listing"
	"github.com/pym-escuchas/escuchas/internal/observability"
	"github.com/pym-escuchas/escuchas/internal/records"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/theme"
	"github.com/pym-escuchas/escuchas/internal/view"
	_ "github.com/pym-escuchas/escuchas/testing"
)

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func consoleBackend() http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	user := map[string]any{"id": 7, "nombre_completo": "Ana Auditora", "rol": "auditor", "data_source": "sql", "dni_auditor": "44556677"}
	mux.HandleFunc("/api/check_session", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err == nil && ck.Value == "valid" {
			write(w, http.StatusOK, map[string]any{"success": true, "user": user})
			return
		}
		write(w, http.StatusUnauthorized, map[string]any{"success": false})
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "valid", Path: "/"})
		write(w, http.StatusOK, map[string]any{"success": true, "user": user})
	})
	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{"success": true, "records": []map[string]any{
			{"id": 1, "telefono": "912345678", "asesor": "Luis Rojas", "fecha_registro": "2025-06-01 10:00:00"},
		}})
	})
	return mux
}

type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	b.handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		b.cookies[ck.Name] = ck
	}
	return rr
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func newConsole(t *testing.T) *browser {
	t.Helper()
	srv := httptest.NewServer(consoleBackend())
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "development", AppRequestTimeout: 5 * time.Second}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	metrics := observability.NewMetrics()
	client, err := backend.New(srv.URL, 2*time.Second, backend.WithObserver(metrics.ObserveBackend), backend.WithLogger(logger))
	require.NoError(t, err)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	sessions := shared.NewSessionManager(rdb, "escuchas_session", "session-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	store := auth.NewStore(client, logger, time.Second)
	tracker := listing.NewTracker(rdb, time.Hour)

	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessions,
		CSRFManager:    csrf,
		Guard:          auth.NewGuard(store, templates, logger),
		AuthHandler:    auth.NewHandler(logger, store, templates, csrf, nil),
		ThemeHandler:   theme.NewHandler(false),
		RecordsHandler: records.NewHandler(logger, records.NewService(logger, "Coordinación"), store,
			listing.NewSnapshots[records.Record](rdb, tracker, "records", time.Hour),
			records.NewDrafts(rdb, tracker, time.Hour), templates, csrf),
		Metrics: metrics,
	})
	return &browser{t: t, handler: router, cookies: map[string]*http.Cookie{}}
}

func csrfToken(t *testing.T, body string) string {
	t.Helper()
	m := csrfField.FindStringSubmatch(body)
	require.Len(t, m, 2, "page must carry a csrf token")
	return html.UnescapeString(m[1])
}

func TestProtectedPageRoundTripsThroughLogin(t *testing.T) {
	b := newConsole(t)

	rr := b.get("/registros")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login?next=%2Fregistros", rr.Header().Get("Location"))

	rr = b.get(rr.Header().Get("Location"))
	require.Equal(t, http.StatusOK, rr.Code)
	token := csrfToken(t, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `name="next" value="/registros"`)
	anonymous := b.cookies["escuchas_session"].Value

	rr = b.post("/login", url.Values{
		"csrf_token": {token}, "correo": {"ana@pym.pe"}, "contrasena": {"secreto"}, "next": {"/registros"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/registros", rr.Header().Get("Location"))
	assert.NotEqual(t, anonymous, b.cookies["escuchas_session"].Value, "login must rotate the session id")

	rr = b.get("/registros")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Ana Auditora")
	assert.Contains(t, body, "Luis Rojas")
	assert.NotContains(t, body, `href="/admin/dashboard"`)
}

func TestUnsafeRequestWithoutTokenIsRejected(t *testing.T) {
	b := newConsole(t)
	b.get("/login")

	rr := b.post("/login", url.Values{"correo": {"ana@pym.pe"}, "contrasena": {"secreto"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAuditorIsDeniedAdminPages(t *testing.T) {
	b := newConsole(t)
	token := csrfToken(t, b.get("/login").Body.String())
	rr := b.post("/login", url.Values{"csrf_token": {token}, "correo": {"ana@pym.pe"}, "contrasena": {"secreto"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = b.get("/admin/usuarios")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Acceso denegado")
}

func TestUnknownPath(t *testing.T) {
	b := newConsole(t)

	rr := b.get("/no/existe")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next=%2Fno%2Fexiste", rr.Header().Get("Location"))

	token := csrfToken(t, b.get("/login").Body.String())
	b.post("/login", url.Values{"csrf_token": {token}, "correo": {"ana@pym.pe"}, "contrasena": {"secreto"}})

	rr = b.get("/no/existe")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "La página que busca no existe.")
}

func TestHealthStaticAndMetrics(t *testing.T) {
	b := newConsole(t)

	rr := b.get("/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = b.get("/static/css/app.css")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/css"))

	rr = b.get("/static/js/app.js")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/javascript"))

	rr = b.get("/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "escuchas_http_requests_total")
}
