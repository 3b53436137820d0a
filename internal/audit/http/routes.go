package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/pym-escuchas/escuchas/internal/auth"
)

// Each page of the log costs the backend a full query; an admin paging fast gets throttled.
const (
	rateLimit  = 60
	rateWindow = time.Minute
)

// MountRoutes registers GET /admin/auditoria. The admin gate belongs to the caller.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.With(throttle()).Get("/admin/auditoria", h.handleTimeline)
}

func throttle() func(http.Handler) http.Handler {
	return httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(viewerKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
			http.Error(w, "Demasiadas solicitudes, intente en un minuto.", http.StatusTooManyRequests)
		}),
	)
}

// viewerKey buckets signed-in admins by backend id and anything else by address.
func viewerKey(r *http.Request) (string, error) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		ip, err := httprate.KeyByIP(r)
		return "ip:" + ip, err
	}
	return "user:" + strconv.FormatInt(identity.ID, 10), nil
}
