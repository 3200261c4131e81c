package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/adam-wood/llm-council/prompt"
	"github.com/adam-wood/llm-council/types"
)

// PromptHandler serves the stage prompt configuration endpoints.
type PromptHandler struct {
	store  *prompt.Store
	logger *zap.Logger
}

// NewPromptHandler creates the prompt handler.
func NewPromptHandler(promptStore *prompt.Store, logger *zap.Logger) *PromptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptHandler{
		store:  promptStore,
		logger: logger.With(zap.String("component", "prompt_handler")),
	}
}

type updatePromptRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Template    string `json:"template"`
	Notes       string `json:"notes"`
}

// HandleGet returns the prompt configuration. With ?model= the effective
// per-stage prompts for that model; otherwise the full defaults plus
// overrides.
func (h *PromptHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	if model := r.URL.Query().Get("model"); model != "" {
		WriteJSON(w, http.StatusOK, map[string]prompt.Prompt{
			prompt.Stage1: h.store.ForModel(userID, model, prompt.Stage1),
			prompt.Stage2: h.store.ForModel(userID, model, prompt.Stage2),
			prompt.Stage3: h.store.ForModel(userID, model, prompt.Stage3),
		})
		return
	}
	WriteJSON(w, http.StatusOK, h.store.GetAll(userID))
}

// HandleUpdate replaces one stage's prompt, as a user default or as a
// model-specific override when ?model= is given.
func (h *PromptHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	stage := r.PathValue("stage")
	if !prompt.ValidStage(stage) {
		WriteErrorMessage(w, types.ErrInvalidRequest, "invalid stage, must be stage1, stage2, or stage3", h.logger)
		return
	}

	var req updatePromptRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	all, err := h.store.Update(UserID(r), stage, prompt.Prompt{
		Name:        req.Name,
		Description: req.Description,
		Template:    req.Template,
		Notes:       req.Notes,
	}, r.URL.Query().Get("model"))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to update prompt").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, all)
}

// HandleReset removes one stage's override.
func (h *PromptHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	stage := r.PathValue("stage")
	if !prompt.ValidStage(stage) {
		WriteErrorMessage(w, types.ErrInvalidRequest, "invalid stage, must be stage1, stage2, or stage3", h.logger)
		return
	}

	all, err := h.store.Reset(UserID(r), stage, r.URL.Query().Get("model"))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to reset prompt").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, all)
}

// HandleResetAll removes every prompt override for the user.
func (h *PromptHandler) HandleResetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ResetAll(UserID(r))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to reset prompts").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, all)
}
