package users

import "github.com/pym-escuchas/escuchas/internal/auth"

// Account is a console user as the backend lists it.
type Account struct {
	ID        int64  `json:"id"`
	FullName  string `json:"nombre_completo"`
	AuditorID string `json:"dni_auditor"`
	Email     string `json:"correo"`
	Role      string `json:"rol"`
}

// IsAdmin reports whether the account holds the admin role.
func (a Account) IsAdmin() bool {
	return a.Role == auth.RoleAdmin
}

// Roles lists the assignable roles in selector order.
var Roles = []RoleOption{
	{Value: auth.RoleAuditor, Label: "Auditor"},
	{Value: auth.RoleAdmin, Label: "Admin"},
}

// RoleOption is one entry of the role selector.
type RoleOption struct {
	Value string
	Label string
}

// ValidRole reports whether role can be assigned.
func ValidRole(role string) bool {
	for _, opt := range Roles {
		if opt.Value == role {
			return true
		}
	}
	return false
}

type usersResponse struct {
	Users []Account `json:"users"`
}

type changeRoleRequest struct {
	NewRole string `json:"new_role"`
}

type changeRoleResponse struct {
	Message string `json:"message"`
}
