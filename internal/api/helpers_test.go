package api_test

import (
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/core"
	"github.com/sb-ncbr/proptimus-web/internal/hinting"
	"github.com/sb-ncbr/proptimus-web/internal/proptimus"
)

// hintingAgainst builds a hinter for app that asks hintingURL.
func hintingAgainst(app *core.App, hintingURL string) *hinting.Hinter {
	client := proptimus.New(app.Config.API.BaseURL, hintingURL, time.Second)
	return hinting.NewHinter(client, app.Query, app.Config.Hinting.StaleTime, app.Logger)
}
