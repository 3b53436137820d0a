package dashboard

import (
	"context"
	"fmt"

	"github.com/pym-escuchas/escuchas/internal/backend"
)

// Messages shown when the aggregate cannot be loaded.
const (
	MsgLoadFailed  = "Error al cargar datos del dashboard."
	MsgLoadOffline = "No se pudo conectar al servidor para obtener datos del dashboard."
)

// Fetch loads the aggregate of p.
func Fetch(ctx context.Context, caller backend.Caller, p Period) (*Summary, error) {
	var s Summary
	if err := caller.Get(ctx, "/api/dashboard_data", p.Query(), &s); err != nil {
		return nil, fmt.Errorf("dashboard: fetch %04d-%02d: %w", p.Year, p.Month, err)
	}
	return &s, nil
}

// LoadMessage maps a fetch failure to the banner text.
func LoadMessage(err error) string {
	if backend.IsBusiness(err) {
		return backend.UserMessage(err, MsgLoadFailed)
	}
	return backend.UserMessage(err, MsgLoadOffline)
}
