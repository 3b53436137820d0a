// Package web ships the console's page templates and browser assets inside the binary.
package web

import (
	"embed"
	"io/fs"
)

// Templates holds layouts, partials and pages under templates/.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

//go:embed static/css static/js
var static embed.FS

// Static returns the assets served under /static/, rooted at the static directory.
func Static() (fs.FS, error) {
	return fs.Sub(static, "static")
}
