package theme

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pym-escuchas/escuchas/internal/shared"
)

// Handler exposes the theme toggle.
type Handler struct {
	secure bool
}

// NewHandler constructs a Handler; secure marks the cookie Secure.
func NewHandler(secure bool) *Handler {
	return &Handler{secure: secure}
}

// MountRoutes registers the toggle endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/theme/toggle", h.toggle)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	Toggle(w, r, h.secure)
	http.Redirect(w, r, BackPath(r), http.StatusSeeOther)
}

// Middleware puts the known theme (or "") into the request context and asks for the OS
// hint. Critical-CH makes Chromium retry the first navigation with the hint attached.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Accept-CH", HintHeader)
		h.Set("Critical-CH", HintHeader)
		h.Add("Vary", HintHeader)
		known, _ := Known(r)
		next.ServeHTTP(w, r.WithContext(shared.ContextWithTheme(r.Context(), known)))
	})
}
