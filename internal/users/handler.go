package users

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/listing"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/view"
)

const sessionKeyEdits = "users.role_edits"

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	store     *auth.Store
	snapshots *listing.Snapshots[Account]
	templates *view.Engine
	csrf      *shared.CSRFManager
	now       func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, store *auth.Store, snapshots *listing.Snapshots[Account], templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, store: store, snapshots: snapshots, templates: templates, csrf: csrf, now: time.Now}
}

// MountRoutes registers user routes; the caller applies the admin gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/admin/usuarios", h.listUsers)
	r.Post("/admin/usuarios/{id}/rol", h.changeRole)
}

// UserRow is one account with its selector state.
type UserRow struct {
	Account
	Edit     RoleEdit
	Selected string
	Current  bool
}

type listPageData struct {
	Rows  []UserRow
	Roles []RoleOption
	Snap  string
	Error string
}

func (h *Handler) scope(r *http.Request) listing.Scope {
	scope := listing.Scope{}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		scope.SessionID = sess.ID
	}
	if identity := auth.IdentityFromContext(r.Context()); identity != nil {
		scope.UserID = identity.ID
	}
	return scope
}

func (h *Handler) snapshot(r *http.Request, ref string) (*listing.Snapshot[Account], error) {
	ctx := r.Context()
	scope := h.scope(r)
	if snap, ok, err := h.snapshots.Load(ctx, scope, ref); err != nil {
		h.logger.Warn("load users snapshot", slog.Any("error", err))
	} else if ok {
		return snap, nil
	}
	sess := shared.SessionFromContext(ctx)
	return h.snapshots.Refresh(ctx, scope, func(ctx context.Context) ([]Account, error) {
		var items []Account
		err := h.store.Call(ctx, sess, func(c backend.Caller) error {
			var err error
			items, err = h.service.ListUsers(ctx, c)
			return err
		})
		return items, err
	})
}

func (h *Handler) loadEdits(sess *shared.Session) RoleEdits {
	edits := RoleEdits{}
	if sess != nil {
		sess.GetJSON(sessionKeyEdits, &edits)
	}
	return edits
}

func (h *Handler) saveEdits(sess *shared.Session, edits RoleEdits) {
	if sess == nil {
		return
	}
	edits.Prune(h.now())
	if len(edits) == 0 {
		sess.Delete(sessionKeyEdits)
		return
	}
	if err := sess.SetJSON(sessionKeyEdits, edits); err != nil {
		h.logger.Error("store role edits", slog.Any("error", err))
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	identity := auth.IdentityFromContext(r.Context())
	data := listPageData{Roles: Roles}

	snap, err := h.snapshot(r, r.URL.Query().Get("snap"))
	if err != nil {
		if auth.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list users failed", slog.Any("error", err))
		data.Error = LoadMessage(err)
		h.render(w, r, data)
		return
	}

	now := h.now()
	edits := h.loadEdits(sess)
	data.Snap = snap.Ref()
	data.Rows = make([]UserRow, 0, len(snap.Items))
	for _, acc := range snap.Items {
		row := UserRow{Account: acc, Edit: edits.At(acc.ID, now), Selected: acc.Role}
		if row.Edit.SelectedRole != "" {
			row.Selected = row.Edit.SelectedRole
		}
		row.Current = identity != nil && identity.ID == acc.ID
		data.Rows = append(data.Rows, row)
	}
	h.saveEdits(sess, edits)
	h.render(w, r, data)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	identity := auth.IdentityFromContext(ctx)
	ref := r.PostFormValue("snap")
	role := r.PostFormValue("new_role")
	back := "/admin/usuarios"
	if ref != "" {
		back += "?" + url.Values{"snap": {ref}}.Encode()
	}

	edits := h.loadEdits(sess)
	if identity != nil && identity.ID == id {
		edits.Fail(id, MsgOwnRole)
		h.saveEdits(sess, edits)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	edits.Begin(id, role)
	var message string
	err = h.store.Call(ctx, sess, func(c backend.Caller) error {
		var err error
		message, err = h.service.ChangeRole(ctx, c, id, role)
		return err
	})
	if auth.HandleExpired(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Warn("change role", slog.Int64("user_id", id), slog.Any("error", err))
		edits.Fail(id, ChangeMessage(err))
		h.saveEdits(sess, edits)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	edits.Succeed(id, message, h.now())
	h.saveEdits(sess, edits)
	h.applyLocally(r, ref, id, role)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// applyLocally rewrites the role in the stored snapshot so the list reflects the change
// without a refetch.
func (h *Handler) applyLocally(r *http.Request, ref string, id int64, role string) {
	ctx := r.Context()
	scope := h.scope(r)
	snap, ok, err := h.snapshots.Load(ctx, scope, ref)
	if err != nil {
		h.logger.Warn("load users snapshot", slog.Any("error", err))
		return
	}
	if !ok || !SetRole(snap.Items, id, role) {
		return
	}
	if _, err := h.snapshots.Replace(ctx, scope, snap); err != nil {
		h.logger.Warn("replace users snapshot", slog.Any("error", err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data listPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.Page(r, "Gestionar Usuarios")
	viewData.CSRFToken = csrfToken
	viewData.Flash = flash
	viewData.Data = data
	if err := h.templates.Render(w, "pages/users.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
