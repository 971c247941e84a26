package assets

import "embed"

// WebFS holds the page templates and the static files they load.
//
//go:embed web/*.html web/dist
var WebFS embed.FS
