package main

import (
	"net/http"
)

// focusScreens are the screens whose focus triggers a scheduling pass. The screen name is used as a metric label so
// the set is closed.
//
//nolint:gochecknoglobals // read-only lookup table.
var focusScreens = map[string]bool{
	"today":    true,
	"calendar": true,
	"sessions": true,
	"rules":    true,
}

// focusPOST runs a scheduling pass, or joins the one in flight, when a screen that shows sessions gains focus.
func (app *application) focusPOST(w http.ResponseWriter, r *http.Request) {
	screen := r.PathValue("screen")
	if !focusScreens[screen] {
		app.notFound(w, r)
		return
	}
	result, err := app.runner.Trigger(r.Context(), screen)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, result)
}
