package handlers

import "net/http"

// HandleRoot is the unauthenticated health check.
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "LLM Council API",
	})
}
