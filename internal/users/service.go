package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pym-escuchas/escuchas/internal/backend"
)

// Messages shown for user management.
const (
	MsgRoleRequired    = "Por favor seleccione un rol."
	MsgChangeFailed    = "Error al cambiar el rol."
	MsgChangeOffline   = "Error de conexión al cambiar el rol."
	MsgLoadFailed      = "Error al cargar usuarios."
	MsgLoadOffline     = "No se pudo conectar al servidor para obtener los usuarios."
	MsgOwnRole         = "No puede cambiar su propio rol."
	MsgRoleChangedNote = "Rol actualizado."
)

// ErrRoleRequired rejects a change without a valid role before calling the backend.
var ErrRoleRequired = errors.New("users: role required")

// Service talks to the backend for user management.
type Service struct{}

// NewService builds Service instance.
func NewService() *Service {
	return &Service{}
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context, caller backend.Caller) ([]Account, error) {
	var resp usersResponse
	if err := caller.Get(ctx, "/api/users", nil, &resp); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	if resp.Users == nil {
		return []Account{}, nil
	}
	return resp.Users, nil
}

// ChangeRole assigns role to account id and returns the backend confirmation.
func (s *Service) ChangeRole(ctx context.Context, caller backend.Caller, id int64, role string) (string, error) {
	if !ValidRole(role) {
		return "", ErrRoleRequired
	}
	var resp changeRoleResponse
	path := "/api/users/" + strconv.FormatInt(id, 10) + "/change_role"
	if err := caller.Post(ctx, path, changeRoleRequest{NewRole: role}, &resp); err != nil {
		return "", fmt.Errorf("users: change role of %d: %w", id, err)
	}
	if resp.Message == "" {
		resp.Message = MsgRoleChangedNote
	}
	return resp.Message, nil
}

// ChangeMessage maps a role change failure to the row error.
func ChangeMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoleRequired):
		return MsgRoleRequired
	case backend.IsBusiness(err):
		return backend.UserMessage(err, MsgChangeFailed)
	default:
		return backend.UserMessage(err, MsgChangeOffline)
	}
}

// LoadMessage maps a list failure to the banner text.
func LoadMessage(err error) string {
	if backend.IsBusiness(err) {
		return backend.UserMessage(err, MsgLoadFailed)
	}
	return backend.UserMessage(err, MsgLoadOffline)
}

// SetRole updates the role of account id in items. It reports whether the id was found.
func SetRole(items []Account, id int64, role string) bool {
	for i := range items {
		if items[i].ID == id {
			items[i].Role = role
			return true
		}
	}
	return false
}
