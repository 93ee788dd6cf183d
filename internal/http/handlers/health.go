package handlers

import (
	"net/http"
)

// Health is the liveness probe.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Network describes the chain the signer is connected to.
func (a *App) Network(w http.ResponseWriter, r *http.Request) {
	if a.Chain == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "chain not connected")
		return
	}
	a.json(w, http.StatusOK, a.Chain.Status())
}
