package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/adam-wood/llm-council/agents"
	"github.com/adam-wood/llm-council/types"
)

// AgentHandler serves the council roster endpoints.
type AgentHandler struct {
	store  *agents.Store
	logger *zap.Logger
}

// NewAgentHandler creates the agent handler.
func NewAgentHandler(agentStore *agents.Store, logger *zap.Logger) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHandler{
		store:  agentStore,
		logger: logger.With(zap.String("component", "agent_handler")),
	}
}

type createAgentRequest struct {
	Title   string            `json:"title"`
	Role    string            `json:"role"`
	Model   string            `json:"model"`
	Prompts map[string]string `json:"prompts"`
	Active  *bool             `json:"active"`
}

// HandleList returns all agents, or only the active ones with
// ?active_only=true.
func (h *AgentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	if r.URL.Query().Get("active_only") == "true" {
		active, err := h.store.ListActive(userID)
		if err != nil {
			WriteError(w, types.NewError(types.ErrInternalError, "failed to list agents").WithCause(err), h.logger)
			return
		}
		WriteJSON(w, http.StatusOK, active)
		return
	}
	WriteJSON(w, http.StatusOK, h.store.All(userID))
}

// HandleCreate adds a new agent.
func (h *AgentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Model) == "" {
		WriteErrorMessage(w, types.ErrInvalidRequest, "title and model are required", h.logger)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	agent, err := h.store.Create(UserID(r), req.Title, req.Role, req.Model, req.Prompts, active)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to create agent").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, agent)
}

// HandleInitialize seeds the default board for users with no agents.
func (h *AgentHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	seeded, err := h.store.InitializeDefaults(UserID(r))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to initialize agents").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"agents": seeded,
		"count":  len(seeded),
	})
}

// HandleGetChairman returns the designated chairman, null when the
// configured default model synthesizes.
func (h *AgentHandler) HandleGetChairman(w http.ResponseWriter, r *http.Request) {
	chairman, err := h.store.Chairman(UserID(r))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to load chairman").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]*agents.Agent{"chairman": chairman})
}

// HandleSetChairman designates an agent as chairman. The literal ID
// "default" clears the designation.
func (h *AgentHandler) HandleSetChairman(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	target := agentID
	if target == "default" {
		target = ""
	}
	ok, err := h.store.SetChairman(UserID(r), target)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to set chairman").WithCause(err), h.logger)
		return
	}
	if !ok {
		WriteErrorMessage(w, types.ErrNotFound, "agent not found", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"chairman": agentID,
	})
}

// HandleGet returns one agent.
func (h *AgentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	agent := h.store.ByID(UserID(r), r.PathValue("agent_id"))
	if agent == nil {
		WriteErrorMessage(w, types.ErrNotFound, "agent not found", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, agent)
}

// HandleUpdate applies a partial update to an agent.
func (h *AgentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var updates agents.Updates
	if err := DecodeJSONBody(w, r, &updates, h.logger); err != nil {
		return
	}
	agent, err := h.store.Update(UserID(r), r.PathValue("agent_id"), updates)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to update agent").WithCause(err), h.logger)
		return
	}
	if agent == nil {
		WriteErrorMessage(w, types.ErrNotFound, "agent not found", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, agent)
}

// HandleDelete removes an agent; deleting the chairman clears the
// designation as well.
func (h *AgentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.Delete(UserID(r), r.PathValue("agent_id"))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to delete agent").WithCause(err), h.logger)
		return
	}
	if !ok {
		WriteErrorMessage(w, types.ErrNotFound, "agent not found", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
