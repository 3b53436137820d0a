package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pym-escuchas/escuchas/internal/audit"
	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/view"
)

// TimelineService defines the contract for audit log data.
type TimelineService interface {
	Timeline(ctx context.Context, caller backend.Caller, filters audit.TimelineFilters) (audit.Result, error)
}

// Handler serves the audit log view.
type Handler struct {
	logger    *slog.Logger
	service   TimelineService
	store     *auth.Store
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler creates the audit log handler.
func NewHandler(logger *slog.Logger, service TimelineService, store *auth.Store, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		store:     store,
		templates: templates,
		csrf:      csrf,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	filters := parseFilters(r)

	var result audit.Result
	err := h.store.Call(ctx, sess, func(c backend.Caller) error {
		var err error
		result, err = h.service.Timeline(ctx, c, filters)
		return err
	})
	if auth.HandleExpired(w, r, err) {
		return
	}

	vm := audit.ViewModel{PerPage: audit.PerPageOptions}
	if err != nil {
		h.logger.Error("load audit logs", slog.Any("error", err))
		vm.Error = audit.LoadMessage(err)
		vm.Pagination = audit.EmptyPagination(filters)
	} else {
		vm.Rows = result.Rows
		vm.Pagination = result.Pagination
	}
	vm.Window = vm.Pagination.Window(5)

	csrfToken, _ := h.csrf.EnsureToken(ctx, sess)
	data := view.Page(r, "Logs de Auditoría")
	data.CSRFToken = csrfToken
	data.Data = vm
	if sess != nil {
		data.Flash = sess.PopFlash()
	}
	if err := h.templates.Render(w, "pages/audit_logs.html", data); err != nil {
		h.handleServerError(w, "render audit logs", err)
	}
}

func parseFilters(r *http.Request) audit.TimelineFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	perPage, _ := strconv.Atoi(strings.TrimSpace(q.Get("per_page")))
	return audit.TimelineFilters{Page: page, PerPage: perPage}.Normalize()
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
