package dashboard

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/dashboard/svg"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/view"
)

// Placeholder shown instead of the cross-tab.
const MsgNoDetail = "No hay datos de registros detallados para el período seleccionado o ningún auditor tiene registros."

// Handler serves the admin aggregate view.
type Handler struct {
	logger    *slog.Logger
	store     *auth.Store
	memory    *Memory
	templates *view.Engine
	csrf      *shared.CSRFManager
	now       func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store *auth.Store, memory *Memory, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, memory: memory, templates: templates, csrf: csrf, now: time.Now}
}

// MountRoutes registers the dashboard; the caller applies the admin gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/admin/dashboard", h.handleDashboard)
}

type pageData struct {
	Period    Period
	Months    []MonthOption
	Years     []int
	Heading   string
	Summary   *Summary
	Cards     Cards
	BarChart  template.HTML
	LineChart template.HTML
	Days      []Day
	Rows      []Row
	NoDetail  string
	Error     string
}

// HasCharts reports whether the period has anything to plot.
func (d pageData) HasCharts() bool {
	return d.BarChart != "" || d.LineChart != ""
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()
	sess := shared.SessionFromContext(ctx)

	def := CurrentPeriod(now)
	if sess != nil && h.memory != nil {
		if p, ok, err := h.memory.Recall(ctx, sess.ID); err != nil {
			h.logger.Warn("recall dashboard period", slog.Any("error", err))
		} else if ok && p.Valid(now) {
			def = p
		}
	}
	period, _ := ParsePeriod(r.URL.Query(), def, now)

	var token int64
	if sess != nil && h.memory != nil {
		var err error
		if token, err = h.memory.Issue(ctx, sess.ID); err != nil {
			h.logger.Warn("issue dashboard token", slog.Any("error", err))
		}
	}

	var summary *Summary
	err := h.store.Call(ctx, sess, func(c backend.Caller) error {
		var err error
		summary, err = Fetch(ctx, c, period)
		return err
	})
	if token > 0 {
		h.remember(ctx, sess.ID, token, period)
	}
	if auth.HandleExpired(w, r, err) {
		return
	}

	data := pageData{
		Period:   period,
		Months:   MonthOptions(),
		Years:    YearRange(now),
		NoDetail: MsgNoDetail,
	}
	if err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		data.Error = LoadMessage(err)
		data.Heading = heading("", 0)
		h.render(w, r, data)
		return
	}
	h.fill(&data, summary)
	h.render(w, r, data)
}

func (h *Handler) remember(ctx context.Context, sessionID string, token int64, p Period) {
	ok, err := h.memory.Remember(ctx, sessionID, token, p)
	if err != nil {
		h.logger.Warn("remember dashboard period", slog.Any("error", err))
		return
	}
	if !ok {
		h.logger.Debug("dashboard period superseded", slog.Int64("token", token))
	}
}

func (h *Handler) fill(data *pageData, s *Summary) {
	data.Summary = s
	data.Heading = heading(s.MonthName, s.Year)
	data.Cards = CardsOf(s)
	data.Days = s.Days
	data.Rows = CrossTab(s)

	if s.TotalRecords == 0 {
		return
	}
	suffix := " - " + s.MonthName + " " + strconv.Itoa(s.Year)
	if bars := AuditorBars(s); len(bars) > 0 {
		chart, err := svg.Bars(0, 0, bars, svg.Opts{
			Title:       "Registros por Auditor" + suffix,
			Description: "Total de registros por auditor en el mes",
			SeriesLabel: "Total Registros por Auditor",
		})
		if err != nil {
			h.logger.Warn("render auditor chart", slog.Any("error", err))
		}
		data.BarChart = chart
	}
	if daily := DailyLine(s); len(daily) > 0 {
		chart, err := svg.Line(0, 0, daily, svg.Opts{
			Title:       "Registros Diarios" + suffix,
			Description: "Total de registros por día del mes",
			SeriesLabel: "Total Registros Diarios",
			ShowDots:    true,
		})
		if err != nil {
			h.logger.Warn("render daily chart", slog.Any("error", err))
		}
		data.LineChart = chart
	}
}

func heading(month string, year int) string {
	if month == "" {
		month = "Mes Desconocido"
	}
	y := "Año Desconocido"
	if year > 0 {
		y = strconv.Itoa(year)
	}
	return "Resumen de actividad para " + month + " " + y + "."
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data pageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	viewData := view.Page(r, "Dashboard Admin")
	viewData.CSRFToken = csrfToken
	viewData.Data = data
	if sess != nil {
		viewData.Flash = sess.PopFlash()
	}
	if err := h.templates.Render(w, "pages/dashboard.html", viewData); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
