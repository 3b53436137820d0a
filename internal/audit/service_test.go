package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pym-escuchas/escuchas/internal/backend"
)

func newConn(t *testing.T, handler http.HandlerFunc) *backend.Conn {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := backend.New(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return client.Conn(nil)
}

const samplePage = `{
	"success": true,
	"total_pages": 4,
	"current_page": 2,
	"total_logs": 52,
	"logs": [
		{
			"id": 91,
			"timestamp": "Tue, 10 Jun 2025 15:04:05 GMT",
			"nombre_usuario": "Ana Auditora",
			"correo_usuario": "ana@pym.pe",
			"rol_usuario": "admin",
			"accion": "CAMBIO_ROL",
			"entidad_afectada": "usuarios",
			"id_entidad_afectada": 7,
			"direccion_ip": "10.0.0.8",
			"user_agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
			"detalles_anteriores": {"rol": "auditor"},
			"detalles_nuevos": "{\"rol\":\"admin\"}"
		},
		{
			"id": 90,
			"timestamp": "2025-06-10T09:00:00",
			"accion": "LOGIN_FALLIDO",
			"detalles_nuevos": "texto libre"
		}
	]
}`

func TestServiceTimelinePaging(t *testing.T) {
	var query string
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Encode()
		_, _ = w.Write([]byte(samplePage))
	})
	result, err := NewService().Timeline(context.Background(), conn, TimelineFilters{Page: 2, PerPage: 15})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if query != "page=2&per_page=15" {
		t.Fatalf("unexpected query %q", query)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	p := result.Pagination
	if p.Page != 2 || p.TotalPages != 4 || p.Total != 52 || p.PerPage != 15 {
		t.Fatalf("unexpected pagination %+v", p)
	}
}

func TestServiceTimelineRendersRows(t *testing.T) {
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	})
	result, err := NewService().Timeline(context.Background(), conn, TimelineFilters{})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	first := result.Rows[0]
	if first.Actor != "Ana Auditora" || first.EntityID != "7" {
		t.Fatalf("unexpected first row %+v", first)
	}
	if first.At != "10/06/25, 15:04:05" {
		t.Fatalf("unexpected timestamp %q", first.At)
	}
	if first.UserAgentShort != "Mozilla/5.0 (X11; Linux x..." {
		t.Fatalf("unexpected user agent %q", first.UserAgentShort)
	}
	if first.Before != "{\n  \"rol\": \"auditor\"\n}" {
		t.Fatalf("unexpected before %q", first.Before)
	}
	if first.After != "{\n  \"rol\": \"admin\"\n}" {
		t.Fatalf("expected string-wrapped JSON to be indented, got %q", first.After)
	}

	second := result.Rows[1]
	if second.Actor != "Sistema" {
		t.Fatalf("missing actor should render Sistema, got %q", second.Actor)
	}
	for name, v := range map[string]string{
		"role": second.Role, "entity": second.Entity, "entity id": second.EntityID,
		"ip": second.IPAddress, "agent": second.UserAgentShort, "before": second.Before,
	} {
		if v != "N/A" {
			t.Fatalf("%s: expected N/A, got %q", name, v)
		}
	}
	if second.After != "texto libre" {
		t.Fatalf("plain text details should render as is, got %q", second.After)
	}
}

func TestServiceTimelineDefaultsPerPage(t *testing.T) {
	var perPage string
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		perPage = r.URL.Query().Get("per_page")
		_, _ = w.Write([]byte(`{"success":true,"logs":[],"total_pages":0,"current_page":0,"total_logs":0}`))
	})
	result, err := NewService().Timeline(context.Background(), conn, TimelineFilters{Page: -3, PerPage: 33})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if perPage != "15" {
		t.Fatalf("expected default per_page 15, got %s", perPage)
	}
	if result.Pagination.Page != 1 || len(result.Rows) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestServiceTimelineFailureMessages(t *testing.T) {
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Sin permisos"}`))
	})
	_, err := NewService().Timeline(context.Background(), conn, TimelineFilters{})
	if !errors.Is(err, backend.ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if got := LoadMessage(err); got != "Sin permisos" {
		t.Fatalf("unexpected message %q", got)
	}

	conn = newConn(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})
	_, err = NewService().Timeline(context.Background(), conn, TimelineFilters{})
	if got := LoadMessage(err); got != MsgLoadFailed {
		t.Fatalf("unexpected message %q", got)
	}

	offline := errors.New("dial")
	if got := LoadMessage(&backend.Error{Err: errors.Join(backend.ErrUnavailable, offline)}); got != MsgLoadOffline {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestNormalize(t *testing.T) {
	for _, n := range PerPageOptions {
		if got := (TimelineFilters{Page: 3, PerPage: n}).Normalize(); got.PerPage != n || got.Page != 3 {
			t.Fatalf("unexpected normalize %+v", got)
		}
	}
	if got := (TimelineFilters{PerPage: 10}).Normalize(); got.PerPage != DefaultPerPage || got.Page != 1 {
		t.Fatalf("unexpected normalize %+v", got)
	}
}

func TestPageURL(t *testing.T) {
	vm := ViewModel{Pagination: EmptyPagination(TimelineFilters{PerPage: 50})}
	if got := vm.PageURL(3); got != "/admin/auditoria?page=3&per_page=50" {
		t.Fatalf("unexpected url %q", got)
	}
}
