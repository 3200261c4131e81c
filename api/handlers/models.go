package handlers

import (
	"net/http"
)

// ModelHandler reports the configured model roster.
type ModelHandler struct {
	council  []string
	chairman string
}

// NewModelHandler creates the model handler from the configured rosters.
func NewModelHandler(council []string, chairman string) *ModelHandler {
	return &ModelHandler{council: council, chairman: chairman}
}

// HandleModels returns the council models, the chairman model, and the
// deduplicated union of both.
func (h *ModelHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]bool, len(h.council)+1)
	all := make([]string, 0, len(h.council)+1)
	for _, m := range append(append([]string{}, h.council...), h.chairman) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		all = append(all, m)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"council":  h.council,
		"chairman": h.chairman,
		"all":      all,
	})
}
