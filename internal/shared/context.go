package shared

import "context"

type sessionContextKey struct{}

type viewerContextKey struct{}

type themeContextKey struct{}

// Viewer is the display projection of the authenticated identity used by the shell.
type Viewer struct {
	ID       int64
	FullName string
	Role     string
}

// IsAdmin reports whether the viewer holds the admin role.
func (v *Viewer) IsAdmin() bool {
	return v != nil && v.Role == "admin"
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithViewer stores the authenticated viewer in context.
func ContextWithViewer(ctx context.Context, v *Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey{}, v)
}

// ViewerFromContext returns the viewer placed by the route guard, if any.
func ViewerFromContext(ctx context.Context) *Viewer {
	v, _ := ctx.Value(viewerContextKey{}).(*Viewer)
	return v
}

// ContextWithTheme stores the resolved theme name in context.
func ContextWithTheme(ctx context.Context, theme string) context.Context {
	return context.WithValue(ctx, themeContextKey{}, theme)
}

// ThemeFromContext returns the resolved theme, or an empty string.
func ThemeFromContext(ctx context.Context) string {
	theme, _ := ctx.Value(themeContextKey{}).(string)
	return theme
}
