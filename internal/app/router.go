package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/pym-escuchas/escuchas/internal/audit/http"
	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/dashboard"
	"github.com/pym-escuchas/escuchas/internal/observability"
	"github.com/pym-escuchas/escuchas/internal/platform/httpx"
	"github.com/pym-escuchas/escuchas/internal/records"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/theme"
	"github.com/pym-escuchas/escuchas/internal/users"
	"github.com/pym-escuchas/escuchas/internal/view"
	"github.com/pym-escuchas/escuchas/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	Guard            *auth.Guard
	AuthHandler      *auth.Handler
	ThemeHandler     *theme.Handler
	RecordsHandler   *records.Handler
	DashboardHandler *dashboard.Handler
	UsersHandler     *users.Handler
	AuditHandler     *audithttp.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with the console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.AuthHandler.MountRoutes(r)
	params.ThemeHandler.MountRoutes(r)

	r.Group(func(pr chi.Router) {
		pr.Use(params.Guard.RequireSession)
		pr.Get("/", homeHandler(params))
		if params.RecordsHandler != nil {
			params.RecordsHandler.MountRoutes(pr)
		}

		pr.Group(func(ar chi.Router) {
			ar.Use(params.Guard.RequireRole(auth.RoleAdmin))
			if params.DashboardHandler != nil {
				params.DashboardHandler.MountRoutes(ar)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(ar)
			}
			if params.AuditHandler != nil {
				params.AuditHandler.MountRoutes(ar)
			}
		})
	})

	if err := registerAssetTypes(); err != nil {
		params.Logger.Warn("register asset types", slog.Any("error", err))
	}
	staticFS, err := web.Static()
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.NotFound(params.Guard.RequireSession(notFoundHandler(params)).ServeHTTP)

	return r
}

type homePageData struct {
	Links []view.NavItem
}

func homeHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		data := view.Page(r, "Inicio")
		data.CSRFToken = csrfToken
		if sess != nil {
			data.Flash = sess.PopFlash()
		}
		links := make([]view.NavItem, 0, len(data.Nav))
		for _, item := range data.Nav {
			if item.Href != "/" {
				links = append(links, item)
			}
		}
		data.Data = homePageData{Links: links}
		if err := params.Templates.Render(w, "pages/home.html", data); err != nil {
			params.Logger.Error("render home", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

func notFoundHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		data := view.Page(r, "Página no encontrada")
		data.CSRFToken = csrfToken
		if err := params.Templates.RenderStatus(w, http.StatusNotFound, "pages/not_found.html", data); err != nil {
			params.Logger.Error("render not found", slog.Any("error", err))
			http.NotFound(w, r)
		}
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
