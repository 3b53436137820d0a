package auth

import "github.com/pym-escuchas/escuchas/internal/shared"

// Roles known to the console.
const (
	RoleAuditor = "auditor"
	RoleAdmin   = "admin"
)

// Data sources used for advisor lookups.
const (
	DataSourceSQL   = "sql"
	DataSourceSheet = "sheet"
)

// Identity is the authenticated user as reported by the backend.
type Identity struct {
	ID         int64  `json:"id"`
	FullName   string `json:"nombre_completo"`
	Role       string `json:"rol"`
	DataSource string `json:"data_source"`
	Email      string `json:"correo,omitempty"`
	AuditorID  string `json:"dni_auditor,omitempty"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Viewer projects the identity for the shell.
func (i *Identity) Viewer() *shared.Viewer {
	if i == nil {
		return nil
	}
	return &shared.Viewer{ID: i.ID, FullName: i.FullName, Role: i.Role}
}

// Credentials are the login form values.
type Credentials struct {
	Email    string `json:"correo" form:"correo" validate:"required,email"`
	Password string `json:"contrasena" form:"contrasena" validate:"required"`
}

// Status is the guard-visible state of a browser session.
type Status int

const (
	// StatusChecking means the backend session check has not completed yet.
	StatusChecking Status = iota
	// StatusAuthenticated means an identity is present.
	StatusAuthenticated
	// StatusUnauthenticated means the check completed without an identity.
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

type sessionResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	User    *Identity `json:"user"`
}
