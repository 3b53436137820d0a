package records

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/listing"
	"github.com/pym-escuchas/escuchas/internal/platform/httpx"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/view"
)

const (
	// PageSize is the number of records per table page.
	PageSize = 10
)

// Handler serves the records list, export and submission form.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	store     *auth.Store
	snapshots *listing.Snapshots[Record]
	drafts    *Drafts
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, store *auth.Store, snapshots *listing.Snapshots[Record], drafts *Drafts, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, store: store, snapshots: snapshots, drafts: drafts, templates: templates, csrf: csrf}
}

// MountRoutes registers record routes; the caller applies the session guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/registros", h.handleList)
	r.Get("/registros/export.xlsx", h.handleExport)
	r.Get("/registrar", h.showForm)
	r.Post("/registrar", h.handleForm)
	r.Post("/registrar/field", h.handleField)
}

// RecordRow is the display projection of a record.
type RecordRow struct {
	Record
	PhoneHref    string
	ObsShort     string
	RegisteredAt string
}

func toRows(items []Record) []RecordRow {
	rows := make([]RecordRow, 0, len(items))
	for _, rec := range items {
		rows = append(rows, RecordRow{
			Record:       rec,
			PhoneHref:    PhoneLink(rec.Telefono),
			ObsShort:     view.Truncate(rec.Observaciones, 60),
			RegisteredAt: FormatStamp(rec.FechaRegistro),
		})
	}
	return rows
}

type listPageData struct {
	Rows       []RecordRow
	Filter     listing.Filter
	Pagination listing.Pagination
	Window     listing.Window
	Snap       string
	Total      int
	Filtered   int
	Error      string
}

// PageURL links page n of the current snapshot and filter.
func (d listPageData) PageURL(n int) string {
	return "/registros?" + listQuery(d.Snap, d.Filter, n).Encode()
}

// ExportURL links the spreadsheet of the current filter.
func (d listPageData) ExportURL() string {
	q := listQuery(d.Snap, d.Filter, 0)
	return "/registros/export.xlsx?" + q.Encode()
}

// CanExport reports whether the filtered collection has rows.
func (d listPageData) CanExport() bool {
	return d.Filtered > 0 && d.Snap != ""
}

// EmptyText explains an empty table.
func (d listPageData) EmptyText() string {
	if d.Total == 0 && d.Error == "" {
		return "No hay registros para mostrar."
	}
	return "No se encontraron registros que coincidan con los filtros."
}

func listQuery(snap string, f listing.Filter, page int) url.Values {
	q := url.Values{}
	if snap != "" {
		q.Set("snap", snap)
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.Date != "" {
		q.Set("date", f.Date)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	return q
}

func filterFromQuery(q url.Values) (prev, next listing.Filter) {
	next = listing.Filter{Query: q.Get("q"), Date: q.Get("date")}.Normalize()
	prev = next
	if q.Has("pq") || q.Has("pdate") {
		prev = listing.Filter{Query: q.Get("pq"), Date: q.Get("pdate")}.Normalize()
	}
	return prev, next
}

func (h *Handler) scope(r *http.Request) listing.Scope {
	sess := shared.SessionFromContext(r.Context())
	identity := auth.IdentityFromContext(r.Context())
	scope := listing.Scope{}
	if sess != nil {
		scope.SessionID = sess.ID
	}
	if identity != nil {
		scope.UserID = identity.ID
	}
	return scope
}

// snapshot returns the snapshot named by ref, fetching a fresh one when ref is empty,
// unknown or expired.
func (h *Handler) snapshot(r *http.Request, ref string) (*listing.Snapshot[Record], error) {
	ctx := r.Context()
	scope := h.scope(r)
	if snap, ok, err := h.snapshots.Load(ctx, scope, ref); err != nil {
		h.logger.Warn("load records snapshot", slog.Any("error", err))
	} else if ok {
		return snap, nil
	}
	sess := shared.SessionFromContext(ctx)
	return h.snapshots.Refresh(ctx, scope, func(ctx context.Context) ([]Record, error) {
		var items []Record
		err := h.store.Call(ctx, sess, func(c backend.Caller) error {
			var err error
			items, err = h.service.List(ctx, c)
			return err
		})
		return items, err
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prev, filter := filterFromQuery(q)
	page, _ := strconv.Atoi(q.Get("page"))
	page = listing.Track(prev, filter, page)

	data := listPageData{Filter: filter}
	snap, err := h.snapshot(r, q.Get("snap"))
	if err != nil {
		if auth.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list records", slog.Any("error", err))
		data.Error = LoadMessage(err)
		data.Pagination = listing.NewPagination(1, PageSize, 0)
		h.render(w, r, "pages/records_list.html", "Ver Registros", data)
		return
	}

	filtered := listing.Apply(snap.Items, filter, Record.SearchFields, Record.Stamp)
	data.Snap = snap.Ref()
	data.Total = len(snap.Items)
	data.Filtered = len(filtered)
	data.Pagination = listing.NewPagination(page, PageSize, len(filtered))
	data.Window = data.Pagination.Window(5)
	data.Rows = toRows(listing.Slice(filtered, data.Pagination))
	h.render(w, r, "pages/records_list.html", "Ver Registros", data)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, filter := filterFromQuery(q)
	back := "/registros?" + listQuery(q.Get("snap"), filter, 0).Encode()
	sess := shared.SessionFromContext(r.Context())

	snap, ok, err := h.snapshots.Load(r.Context(), h.scope(r), q.Get("snap"))
	if err != nil {
		h.logger.Error("load export snapshot", slog.Any("error", err))
	}
	if !ok {
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "La vista de registros expiró. Vuelva a exportar."})
		}
		http.Redirect(w, r, "/registros?"+listQuery("", filter, 0).Encode(), http.StatusSeeOther)
		return
	}

	filtered := listing.Apply(snap.Items, filter, Record.SearchFields, Record.Stamp)
	if len(filtered) == 0 {
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: MsgNothingToExport})
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	payload, err := WriteXLSX(filtered)
	if err != nil {
		h.logger.Error("export records", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ExportContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write(payload)
}

type formPageData struct {
	Form    *Form
	Options []string
	Source  string
}

func (h *Handler) loadForm(ctx context.Context, sess *shared.Session, identity *auth.Identity) *Form {
	if sess == nil {
		return NewForm(identity)
	}
	form, err := h.drafts.Load(ctx, sess.ID, identity)
	if err != nil {
		h.logger.Error("load record draft", slog.Any("error", err))
	}
	return form
}

// saveForm stores fields of form, or all of them when none are named.
func (h *Handler) saveForm(ctx context.Context, sess *shared.Session, form *Form, fields ...string) {
	if sess == nil {
		return
	}
	if err := h.drafts.Save(ctx, sess.ID, form, fields...); err != nil {
		h.logger.Error("store record draft", slog.Any("error", err))
	}
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	identity := auth.IdentityFromContext(r.Context())
	form := h.loadForm(r.Context(), sess, identity)
	h.renderForm(w, r, http.StatusOK, form, identity)
}

func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	identity := auth.IdentityFromContext(ctx)
	form := h.loadForm(ctx, sess, identity)
	v := h.service.Validator()

	intent := r.PostFormValue("intent")
	if intent == "reset" {
		form.Reset(identity)
		h.saveForm(ctx, sess, form)
		http.Redirect(w, r, "/registrar", http.StatusSeeOther)
		return
	}

	for _, field := range []string{FieldTelefono, FieldDNIAsesor, FieldTipificaBien, FieldClienteDesiste, FieldObservaciones} {
		if values, ok := r.PostForm[field]; ok && len(values) > 0 {
			form.Change(v, field, values[0])
		}
	}

	switch intent {
	case "lookup":
		var err error
		h.supersedeLookups(ctx, sess)
		if form.Blur(v, FieldDNIAsesor) {
			err = h.store.Call(ctx, sess, func(c backend.Caller) error {
				return h.service.Lookup(ctx, c, identity, form)
			})
		}
		h.saveForm(ctx, sess, form)
		if auth.HandleExpired(w, r, err) {
			return
		}
		h.renderForm(w, r, http.StatusOK, form, identity)
	default:
		err := h.store.Call(ctx, sess, func(c backend.Caller) error {
			return h.service.Submit(ctx, c, identity, form)
		})
		h.saveForm(ctx, sess, form)
		if err == nil {
			if sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: MsgSaved})
			}
			http.Redirect(w, r, "/registrar", http.StatusSeeOther)
			return
		}
		if auth.HandleExpired(w, r, err) {
			return
		}
		status := http.StatusOK
		if errors.Is(err, ErrInvalidForm) {
			status = http.StatusUnprocessableEntity
		}
		h.renderForm(w, r, status, form, identity)
	}
}

type fieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Event string `json:"event"`
}

type fieldResponse struct {
	Values Values            `json:"values"`
	Errors map[string]string `json:"errors"`
	Rev    int64             `json:"rev"`
}

// handleField applies one live edit. Only the edited field is written back, and an
// advisor lookup lands only while no newer DNI edit superseded it, so overlapping
// requests of the same page never undo each other. The reply is the stored draft.
func (h *Handler) handleField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		_ = httpx.Fail(w, status)
		return
	}
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	identity := auth.IdentityFromContext(ctx)
	form := h.loadForm(ctx, sess, identity)
	v := h.service.Validator()

	if !Editable(req.Field) {
		h.replyDraft(w, form)
		return
	}
	form.Change(v, req.Field, req.Value)
	lookup := req.Event == "blur" && form.Blur(v, req.Field)

	var token int64
	if req.Field == FieldDNIAsesor {
		token = h.supersedeLookups(ctx, sess)
	}
	if !lookup {
		h.saveForm(ctx, sess, form, req.Field)
		h.replyDraft(w, h.loadForm(ctx, sess, identity))
		return
	}

	form.ClearDerived()
	h.saveForm(ctx, sess, form, append([]string{req.Field}, advisorFields...)...)
	err := h.store.Call(ctx, sess, func(c backend.Caller) error {
		return h.service.Lookup(ctx, c, identity, form)
	})
	if sess != nil && token > 0 {
		if _, finErr := h.drafts.FinishLookup(ctx, sess.ID, token, form); finErr != nil {
			h.logger.Error("store advisor lookup", slog.Any("error", finErr))
		}
	}
	if auth.HandleExpired(w, r, err) {
		return
	}
	h.replyDraft(w, h.loadForm(ctx, sess, identity))
}

// supersedeLookups invalidates pending advisor lookups and returns the new token, or 0.
func (h *Handler) supersedeLookups(ctx context.Context, sess *shared.Session) int64 {
	if sess == nil {
		return 0
	}
	token, err := h.drafts.BeginLookup(ctx, sess.ID)
	if err != nil {
		h.logger.Error("issue lookup token", slog.Any("error", err))
	}
	return token
}

func (h *Handler) replyDraft(w http.ResponseWriter, form *Form) {
	if err := httpx.JSON(w, http.StatusOK, fieldResponse{Values: form.Values, Errors: form.Errors, Rev: form.Rev}); err != nil {
		h.logger.Error("encode draft", slog.Any("error", err))
	}
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, form *Form, identity *auth.Identity) {
	_, label := sourceOf(identity)
	data := formPageData{Form: form, Options: Options, Source: label}
	h.renderStatus(w, r, status, "pages/records_form.html", "Registrar Escucha", data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	h.renderStatus(w, r, http.StatusOK, name, title, data)
}

func (h *Handler) renderStatus(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	viewData := view.Page(r, title)
	viewData.CSRFToken = csrfToken
	viewData.Data = data
	if sess != nil {
		viewData.Flash = sess.PopFlash()
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render records page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
