package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "bank": a.Jars != nil}
	if a.Subscribers != nil {
		body["subscribers"] = a.Subscribers()
	}
	a.json(w, http.StatusOK, body)
}
