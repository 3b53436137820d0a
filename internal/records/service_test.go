package records

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/backend"
)

func newConn(t *testing.T, handler http.HandlerFunc) *backend.Conn {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := backend.New(srv.URL, 2*time.Second)
	require.NoError(t, err)
	return client.Conn(nil)
}

func filledForm(t *testing.T, s *Service) *Form {
	t.Helper()
	f := NewForm(auditor())
	v := s.Validator()
	f.Change(v, FieldTelefono, "912345678")
	f.Change(v, FieldDNIAsesor, "12345678")
	f.Change(v, FieldTipificaBien, "SI")
	f.Change(v, FieldClienteDesiste, "NO")
	f.Change(v, FieldObservaciones, "Todo conforme")
	return f
}

func TestLookupFillsDerivedFields(t *testing.T) {
	var path string
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"asesor":"Luis Rojas","campana":"Norte","supervisor":"Carla","coordinador":""}`))
	})
	s := NewService(nil, "Coordinación SQL")
	f := NewForm(auditor())
	f.Change(s.Validator(), FieldDNIAsesor, "12345678")
	f.Errors[FieldDNIAsesor] = "viejo"

	require.NoError(t, s.Lookup(context.Background(), conn, auditor(), f))
	assert.Equal(t, "/api/advisor/sql/12345678", path)
	assert.Equal(t, "Luis Rojas", f.Values.Asesor)
	assert.Equal(t, "Norte", f.Values.Campana)
	assert.Equal(t, "Carla", f.Values.Supervisor)
	assert.Equal(t, "Coordinación SQL", f.Values.Coordinador)
	assert.False(t, f.HasError(FieldDNIAsesor))
}

func TestLookupSheetSourceKeepsEmptyCoordinator(t *testing.T) {
	var path string
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"asesor":"Luis","campana":"Sur","supervisor":"Eva"}`))
	})
	s := NewService(nil, "Coordinación SQL")
	identity := auditor()
	identity.DataSource = auth.DataSourceSheet
	f := NewForm(identity)
	f.Values.DNIAsesor = "123456789"

	require.NoError(t, s.Lookup(context.Background(), conn, identity, f))
	assert.Equal(t, "/api/advisor/sheet/123456789", path)
	assert.Equal(t, "", f.Values.Coordinador)
}

func TestLookupFailureResetsDerivedFields(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"error body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Asesor no registrado"}`))
		}, "Asesor no registrado"},
		{"error on 200", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":""}`))
		}, ""},
		{"server down", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, "Error conectando al servidor (SQL)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := newConn(t, tc.handler)
			s := NewService(nil, "X")
			f := NewForm(auditor())
			f.Values = Values{DNIAsesor: "12345678", Asesor: "viejo", Campana: "viejo", Supervisor: "viejo", Coordinador: "viejo"}

			err := s.Lookup(context.Background(), conn, auditor(), f)
			if tc.want == "" {
				// An empty error field is not a failure.
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.want, f.Errors[FieldDNIAsesor])
			assert.Equal(t, "", f.Values.Asesor)
			assert.Equal(t, "", f.Values.Campana)
			assert.Equal(t, "", f.Values.Supervisor)
			assert.Equal(t, "", f.Values.Coordinador)
		})
	}
}

func TestLookupNotFoundMessageNamesSource(t *testing.T) {
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})
	s := NewService(nil, "X")
	identity := auditor()
	identity.DataSource = auth.DataSourceSheet
	f := NewForm(identity)
	f.Values.DNIAsesor = "12345678"

	require.Error(t, s.Lookup(context.Background(), conn, identity, f))
	assert.Equal(t, "DNI no encontrado en Sheet", f.Errors[FieldDNIAsesor])
}

func TestSubmitSuccessResetsForm(t *testing.T) {
	var got Record
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/submit", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
	})
	s := NewService(nil, "X")
	f := filledForm(t, s)
	f.Values.DNIAuditor = "forjado"

	require.NoError(t, s.Submit(context.Background(), conn, auditor(), f))
	assert.Equal(t, "44556677", got.DNIAuditor, "auditor identity comes from the session")
	assert.Equal(t, "Ana Auditora", got.NombreAuditor)
	assert.Equal(t, "Todo conforme", got.Observaciones)
	assert.Equal(t, Values{DNIAuditor: "44556677", NombreAuditor: "Ana Auditora"}, f.Values)
	assert.Empty(t, f.Errors)
	assert.Empty(t, f.Banner)
}

func TestSubmitInvalidNeverCallsBackend(t *testing.T) {
	called := false
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	s := NewService(nil, "X")
	f := NewForm(auditor())
	f.Values.Telefono = "912"

	err := s.Submit(context.Background(), conn, auditor(), f)
	assert.True(t, errors.Is(err, ErrInvalidForm))
	assert.False(t, called)
	assert.Equal(t, MsgFixErrors, f.Banner)
	assert.Equal(t, "912", f.Values.Telefono)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Registro duplicado"}`))
	})
	s := NewService(nil, "X")
	f := filledForm(t, s)

	require.Error(t, s.Submit(context.Background(), conn, auditor(), f))
	assert.Equal(t, "Registro duplicado", f.Banner)
	assert.Equal(t, "912345678", f.Values.Telefono)

	down := newConn(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	require.Error(t, s.Submit(context.Background(), down, auditor(), f))
	assert.Equal(t, MsgSubmitOffline, f.Banner)

	silent := newConn(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"success":false}`)) })
	require.Error(t, s.Submit(context.Background(), silent, auditor(), f))
	assert.Equal(t, MsgSubmitFailed, f.Banner)
}

func TestListMessages(t *testing.T) {
	offline := newConn(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	s := NewService(nil, "X")
	_, err := s.List(context.Background(), offline)
	require.Error(t, err)
	assert.Equal(t, MsgLoadOffline, LoadMessage(err))

	ok := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"records":[{"id":3,"telefono":"912345678"}]}`))
	})
	items, err := s.List(context.Background(), ok)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].ID)
}
