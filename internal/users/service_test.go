package users

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

func TestListUsers(t *testing.T) {
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"users":[{"id":3,"nombre_completo":"Luis","dni_auditor":"11112222","correo":"luis@pym.pe","rol":"auditor"}]}`))
	})
	items, err := NewService().ListUsers(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, Account{ID: 3, FullName: "Luis", AuditorID: "11112222", Email: "luis@pym.pe", Role: "auditor"}, items[0])
	assert.False(t, items[0].IsAdmin())
}

func TestListUsersEmpty(t *testing.T) {
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	items, err := NewService().ListUsers(context.Background(), conn)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestChangeRolePostsNewRole(t *testing.T) {
	var body map[string]string
	var path string
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"success":true,"message":"Rol de Luis actualizado a admin"}`))
	})
	msg, err := NewService().ChangeRole(context.Background(), conn, 3, "admin")
	require.NoError(t, err)
	assert.Equal(t, "/api/users/3/change_role", path)
	assert.Equal(t, map[string]string{"new_role": "admin"}, body)
	assert.Equal(t, "Rol de Luis actualizado a admin", msg)
}

func TestChangeRoleRequiresRole(t *testing.T) {
	called := false
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := NewService().ChangeRole(context.Background(), conn, 3, "")
	assert.ErrorIs(t, err, ErrRoleRequired)
	assert.False(t, called)
	assert.Equal(t, MsgRoleRequired, ChangeMessage(err))
}

func TestChangeRoleFailureMessages(t *testing.T) {
	conn := newConn(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})
	_, err := NewService().ChangeRole(context.Background(), conn, 3, "admin")
	require.Error(t, err)
	assert.Equal(t, MsgChangeFailed, ChangeMessage(err))

	conn = newConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"Rol inválido"}`))
	})
	_, err = NewService().ChangeRole(context.Background(), conn, 3, "admin")
	assert.Equal(t, "Rol inválido", ChangeMessage(err))

	assert.Equal(t, MsgChangeOffline, ChangeMessage(&backend.Error{Err: errors.Join(backend.ErrUnavailable, errors.New("dial"))}))
}

func TestSetRole(t *testing.T) {
	items := []Account{{ID: 1, Role: "auditor"}, {ID: 2, Role: "auditor"}}
	assert.True(t, SetRole(items, 2, "admin"))
	assert.Equal(t, "admin", items[1].Role)
	assert.False(t, SetRole(items, 9, "admin"))
	assert.True(t, ValidRole("auditor"))
	assert.False(t, ValidRole("root"))
}
