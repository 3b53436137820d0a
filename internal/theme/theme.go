// Package theme resolves and toggles the light/dark preference of a browser.
package theme

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	Light = "light"
	Dark  = "dark"

	// CookieName is the durable storage key of the preference.
	CookieName = "theme"
	// HintHeader is the client hint carrying the OS colour-scheme preference.
	HintHeader = "Sec-CH-Prefers-Color-Scheme"
	// CurrentField is filled by the page script with the scheme the browser is showing.
	CurrentField = "current"

	cookieMaxAge = 365 * 24 * time.Hour
)

// Valid reports whether v names a known theme.
func Valid(v string) bool {
	return v == Light || v == Dark
}

// Known returns the stored preference, else the OS hint. It reports false when the
// request carries neither; the page then follows prefers-color-scheme in CSS.
func Known(r *http.Request) (string, bool) {
	if ck, err := r.Cookie(CookieName); err == nil && Valid(ck.Value) {
		return ck.Value, true
	}
	hint := strings.Trim(strings.TrimSpace(r.Header.Get(HintHeader)), `"`)
	if Valid(hint) {
		return hint, true
	}
	return "", false
}

// Resolve picks the stored preference, then the OS hint, then the theme the page
// reported as displayed (CurrentField), then light.
func Resolve(r *http.Request) string {
	if v, ok := Known(r); ok {
		return v
	}
	if r.Method == http.MethodPost {
		if shown := r.PostFormValue(CurrentField); Valid(shown) {
			return shown
		}
	}
	return Light
}

// Opposite returns the other theme.
func Opposite(v string) string {
	if v == Dark {
		return Light
	}
	return Dark
}

// Persist writes the preference cookie.
func Persist(w http.ResponseWriter, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Toggle flips the resolved preference, persists it and returns the new value.
func Toggle(w http.ResponseWriter, r *http.Request, secure bool) string {
	next := Opposite(Resolve(r))
	Persist(w, next, secure)
	return next
}

// BackPath returns the local path of the Referer, or "/".
func BackPath(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
