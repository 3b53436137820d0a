package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/platform/httpx"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/view"
)

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	ctx = context.WithValue(ctx, identityContextKey{}, identity)
	return shared.ContextWithViewer(ctx, identity.Viewer())
}

// IdentityFromContext returns the identity placed by the guard.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey{}).(*Identity)
	return identity
}

// Guard gates protected routes on the session status.
type Guard struct {
	store     *Store
	templates *view.Engine
	logger    *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(store *Store, templates *view.Engine, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, templates: templates, logger: logger}
}

// RequireSession lets authenticated requests through, shows the loading page while the
// session check runs and sends everyone else to the login page.
func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		switch g.store.Ensure(r.Context(), sess) {
		case StatusAuthenticated:
			identity := g.store.Current(sess)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		case StatusChecking:
			g.deferRequest(w, r, sess)
		default:
			http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
		}
	})
}

// RequireRole renders the access-denied page unless the identity holds role.
func (g *Guard) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil || identity.Role != role {
				g.renderDenied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MsgCheckingRetry asks the user to repeat a submission made while the session check ran.
const MsgCheckingRetry = "Su sesión se estaba verificando. Vuelva a enviar el formulario."

// deferRequest answers a request that arrived before the session check finished. Page
// loads get the self-refreshing loading page; submissions cannot be replayed by a
// refresh, so they are sent back to their page with a notice.
func (g *Guard) deferRequest(w http.ResponseWriter, r *http.Request, sess *shared.Session) {
	switch {
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		g.renderLoading(w, r)
	case wantsJSON(r):
		w.Header().Set("Retry-After", "1")
		_ = httpx.JSON(w, http.StatusServiceUnavailable, httpx.Message{Error: MsgCheckingRetry})
	default:
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: MsgCheckingRetry})
		}
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
	}
}

func (g *Guard) renderLoading(w http.ResponseWriter, r *http.Request) {
	data := view.Page(r, "Cargando sesión")
	data.Data = loadingPageData{Refresh: r.URL.RequestURI()}
	w.Header().Set("Cache-Control", "no-store")
	if err := g.templates.Render(w, "pages/loading.html", data); err != nil {
		g.logger.Error("render loading", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (g *Guard) renderDenied(w http.ResponseWriter, r *http.Request) {
	data := view.Page(r, "Acceso denegado")
	if err := g.templates.RenderStatus(w, http.StatusForbidden, "pages/forbidden.html", data); err != nil {
		g.logger.Error("render forbidden", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	}
}

type loadingPageData struct {
	Refresh string
}

// LoginURL builds the login location retaining the original target.
func LoginURL(next string) string {
	if !SafeNext(next) || next == "/" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// SafeNext reports whether next is a local path the login page may redirect to.
func SafeNext(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") {
		return false
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return false
	}
	path := next
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return path != "/login" && !strings.HasPrefix(path, "/login/")
}

// RedirectTarget returns next when it is safe, else "/".
func RedirectTarget(next string) string {
	if SafeNext(next) {
		return next
	}
	return "/"
}

// HandleExpired redirects to the login page when err reports that the backend session
// is gone. It reports whether a response was written.
func HandleExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthenticated) {
		return false
	}
	target := LoginURL(r.URL.RequestURI())
	if r.Method != http.MethodGet {
		target = LoginURL(r.URL.Path)
	}
	if wantsJSON(r) {
		_ = httpx.JSON(w, http.StatusUnauthorized, map[string]string{"redirect": target})
		return true
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
	return true
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
