package audit

import (
	"encoding/json"
	"strconv"

	"github.com/pym-escuchas/escuchas/internal/listing"
	"github.com/pym-escuchas/escuchas/internal/view"
)

// PerPageOptions lists the page sizes offered by the log view.
var PerPageOptions = []int{15, 25, 50, 100}

// DefaultPerPage is the page size used when none or an unknown one is requested.
const DefaultPerPage = 15

// TimelineFilters holds the paging parameters of a log request.
type TimelineFilters struct {
	Page    int
	PerPage int
}

// Normalize clamps Page to at least 1 and PerPage to one of PerPageOptions.
func (f TimelineFilters) Normalize() TimelineFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	valid := false
	for _, n := range PerPageOptions {
		if f.PerPage == n {
			valid = true
			break
		}
	}
	if !valid {
		f.PerPage = DefaultPerPage
	}
	return f
}

// Entry is one audit log line as the backend sends it. The before/after details are
// opaque to the console.
type Entry struct {
	ID            int64           `json:"id"`
	Timestamp     string          `json:"timestamp"`
	UserName      string          `json:"nombre_usuario,omitempty"`
	UserEmail     string          `json:"correo_usuario,omitempty"`
	UserRole      string          `json:"rol_usuario,omitempty"`
	Action        string          `json:"accion"`
	Entity        string          `json:"entidad_afectada,omitempty"`
	EntityID      json.RawMessage `json:"id_entidad_afectada,omitempty"`
	IPAddress     string          `json:"direccion_ip,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	DetailsBefore json.RawMessage `json:"detalles_anteriores,omitempty"`
	DetailsAfter  json.RawMessage `json:"detalles_nuevos,omitempty"`
}

// TimelineRow is the display form of an Entry.
type TimelineRow struct {
	ID             int64
	At             string
	Actor          string
	ActorEmail     string
	Role           string
	Action         string
	Entity         string
	EntityID       string
	IPAddress      string
	UserAgent      string
	UserAgentShort string
	Before         string
	After          string
}

// Result pairs the rows of one page with the backend's paging counts.
type Result struct {
	Rows       []TimelineRow
	Pagination listing.Pagination
}

// ViewModel is the template data of the log view.
type ViewModel struct {
	Rows       []TimelineRow
	Pagination listing.Pagination
	Window     listing.Window
	PerPage    []int
	Error      string
}

// PageURL links page n at the current page size.
func (vm ViewModel) PageURL(n int) string {
	return "/admin/auditoria?page=" + strconv.Itoa(n) + "&per_page=" + strconv.Itoa(vm.Pagination.PerPage)
}

func mapTimelineRow(e Entry) TimelineRow {
	row := TimelineRow{
		ID:         e.ID,
		At:         formatAt(e.Timestamp),
		Actor:      firstNonEmpty(e.UserName, e.UserEmail, "Sistema"),
		ActorEmail: e.UserEmail,
		Role:       orNA(e.UserRole),
		Action:     e.Action,
		Entity:     orNA(e.Entity),
		EntityID:   orNA(rawText(e.EntityID)),
		IPAddress:  orNA(e.IPAddress),
		UserAgent:  e.UserAgent,
		Before:     orNA(details(e.DetailsBefore)),
		After:      orNA(details(e.DetailsAfter)),
	}
	row.UserAgentShort = "N/A"
	if e.UserAgent != "" {
		row.UserAgentShort = view.Truncate(e.UserAgent, 25)
	}
	return row
}

// details indents a JSON value. Backends sometimes send the value as a JSON string
// holding JSON, which is unwrapped first; a string that is not JSON renders as is.
func details(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return ""
		}
		if !json.Valid([]byte(s)) {
			return s
		}
		raw = json.RawMessage(s)
	}
	return view.IndentJSON(raw)
}

// rawText renders a scalar JSON value without quotes.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func formatAt(raw string) string {
	t, ok := view.ParseStamp(raw)
	if !ok {
		return orNA(raw)
	}
	return t.Format("02/01/06, 15:04:05")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
