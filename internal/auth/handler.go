package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	store       *Store
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	loginLimit  func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance. loginLimit wraps POST /login and may be nil.
func NewHandler(logger *slog.Logger, store *Store, templates *view.Engine, csrf *shared.CSRFManager, loginLimit func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		store:       store,
		templates:   templates,
		csrfManager: csrf,
		validator:   shared.NewValidator(),
		loginLimit:  loginLimit,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	if h.loginLimit != nil {
		r.With(h.loginLimit).Post("/login", h.handleLogin)
	} else {
		r.Post("/login", h.handleLogin)
	}
	r.Post("/logout", h.handleLogout)
}

var loginMessages = map[string]string{
	"correo.required":     "Ingrese su correo electrónico.",
	"correo.email":        "Ingrese un correo electrónico válido.",
	"contrasena.required": "Ingrese su contraseña.",
}

type loginPageData struct {
	Email  string
	Next   string
	Error  string
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	next := r.URL.Query().Get("next")
	if h.store.Ensure(r.Context(), sess) == StatusAuthenticated {
		http.Redirect(w, r, RedirectTarget(next), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, loginPageData{Next: next})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	creds := Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("correo")),
		Password: r.PostFormValue("contrasena"),
	}
	data := loginPageData{Email: creds.Email, Next: r.PostFormValue("next")}

	if err := h.validator.Struct(creds); err != nil {
		data.Errors = shared.FieldErrors(err, loginMessages)
		h.render(w, r, http.StatusBadRequest, data)
		return
	}

	identity, err := h.store.Login(r.Context(), sess, creds)
	if err != nil {
		h.logger.Info("login rejected", slog.String("correo", creds.Email), slog.Any("error", err))
		data.Error = backend.UserMessage(err, "Error en el inicio de sesión. Verifique sus credenciales.")
		h.render(w, r, http.StatusUnauthorized, data)
		return
	}
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Bienvenido, " + identity.FullName})
	}
	http.Redirect(w, r, RedirectTarget(data.Next), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.store.Logout(r.Context(), sess)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	viewData := view.Page(r, "Iniciar Sesión")
	viewData.CSRFToken = csrfToken
	viewData.Data = data
	if sess != nil {
		viewData.Flash = sess.PopFlash()
	}
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
