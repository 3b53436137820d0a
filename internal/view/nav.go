package view

import (
	"strings"

	"github.com/pym-escuchas/escuchas/internal/shared"
)

// NavItem is one sidebar entry.
type NavItem struct {
	Label   string
	Href    string
	Icon    string
	Active  bool
	Divider bool
}

type navEntry struct {
	label     string
	href      string
	icon      string
	adminOnly bool
}

var navigation = []navEntry{
	{label: "Inicio", href: "/", icon: "home"},
	{label: "Registrar Escucha", href: "/registrar", icon: "edit"},
	{label: "Ver Registros", href: "/registros", icon: "table"},
	{label: "Dashboard Admin", href: "/admin/dashboard", icon: "chart", adminOnly: true},
	{label: "Gestionar Usuarios", href: "/admin/usuarios", icon: "users", adminOnly: true},
	{label: "Logs de Auditoría", href: "/admin/auditoria", icon: "journal", adminOnly: true},
}

// Navigation returns the entries visible to the viewer. Admin entries are preceded by
// a divider on the first one.
func Navigation(viewer *shared.Viewer, currentPath string) []NavItem {
	if viewer == nil {
		return nil
	}
	items := make([]NavItem, 0, len(navigation))
	divided := false
	for _, entry := range navigation {
		if entry.adminOnly && !viewer.IsAdmin() {
			continue
		}
		item := NavItem{
			Label:  entry.label,
			Href:   entry.href,
			Icon:   entry.icon,
			Active: IsActive(entry.href, currentPath),
		}
		if entry.adminOnly && !divided {
			item.Divider = true
			divided = true
		}
		items = append(items, item)
	}
	return items
}

// IsActive matches "/" exactly and every other entry by prefix.
func IsActive(href, currentPath string) bool {
	if href == "/" {
		return currentPath == "/"
	}
	return strings.HasPrefix(currentPath, href)
}
