package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adam-wood/llm-council/council"
	"github.com/adam-wood/llm-council/store"
	"github.com/adam-wood/llm-council/types"
)

// Council is the slice of the orchestrator the conversation handler
// drives. Satisfied by *council.Orchestrator.
type Council interface {
	Stage1(ctx context.Context, userID, query string) ([]council.Stage1Result, error)
	Stage2(ctx context.Context, userID, query string, stage1 []council.Stage1Result) ([]council.Stage2Result, map[string]council.LabelInfo, error)
	Stage3(ctx context.Context, userID, query string, stage1 []council.Stage1Result, stage2 []council.Stage2Result) (council.Stage3Result, error)
	Run(ctx context.Context, userID, query string) (*council.Result, error)
	GenerateTitle(ctx context.Context, query string, timeout time.Duration) string
}

// ConversationHandler serves conversation CRUD and the consultation
// endpoints, both blocking and streaming.
type ConversationHandler struct {
	store        *store.ConversationStore
	council      Council
	titleTimeout time.Duration
	logger       *zap.Logger
}

// NewConversationHandler creates the conversation handler.
func NewConversationHandler(convStore *store.ConversationStore, c Council, titleTimeout time.Duration, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		store:        convStore,
		council:      c,
		titleTimeout: titleTimeout,
		logger:       logger.With(zap.String("component", "conversation_handler")),
	}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// HandleList returns conversation summaries, newest first.
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(UserID(r))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to list conversations").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, summaries)
}

// HandleCreate starts a new empty conversation.
func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Create(UserID(r), uuid.New().String())
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to create conversation").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

// HandleGet returns one conversation with its full message history.
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Get(UserID(r), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

// HandleDelete removes a conversation.
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.Delete(UserID(r), r.PathValue("id"))
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to delete conversation").WithCause(err), h.logger)
		return
	}
	if !ok {
		WriteErrorMessage(w, types.ErrNotFound, "conversation not found", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleMessage runs the full consultation synchronously and returns the
// complete three-stage result.
func (h *ConversationHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	conversationID := r.PathValue("id")

	content, ok := h.acceptMessage(w, r, userID, conversationID)
	if !ok {
		return
	}
	isFirst := content.isFirst

	if err := h.store.AddUserMessage(userID, conversationID, content.text); err != nil {
		h.writeStoreError(w, err)
		return
	}

	if isFirst {
		title := h.council.GenerateTitle(r.Context(), content.text, h.titleTimeout)
		if err := h.store.UpdateTitle(userID, conversationID, title); err != nil {
			h.logger.Warn("failed to persist conversation title", zap.Error(err))
		}
	}

	result, err := h.council.Run(r.Context(), userID, content.text)
	if err != nil {
		h.writeCouncilError(w, err)
		return
	}

	if err := h.store.AddAssistantMessage(userID, conversationID, result.Stage1, result.Stage2, result.Stage3); err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to persist response").WithCause(err), h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// HandleMessageStream runs the consultation and streams per-stage progress
// as server-sent events. Title generation runs concurrently with the
// stages and its event lands after stage 3.
func (h *ConversationHandler) HandleMessageStream(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	conversationID := r.PathValue("id")

	content, ok := h.acceptMessage(w, r, userID, conversationID)
	if !ok {
		return
	}
	isFirst := content.isFirst

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		WriteErrorMessage(w, types.ErrInternalError, "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	send := func(ev council.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode stream event", zap.Error(err))
			return
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	ctx := r.Context()
	query := content.text

	if err := h.store.AddUserMessage(userID, conversationID, query); err != nil {
		send(council.ErrorEvent("failed to persist message", ""))
		return
	}

	var title string
	var titleGroup errgroup.Group
	if isFirst {
		titleGroup.Go(func() error {
			title = h.council.GenerateTitle(ctx, query, h.titleTimeout)
			return nil
		})
	}

	send(council.StartEvent(council.EventStage1Start))
	stage1, err := h.council.Stage1(ctx, userID, query)
	if err != nil {
		send(h.streamError(err))
		return
	}
	send(council.DataEvent(council.EventStage1Complete, stage1))

	if len(stage1) == 0 {
		// Nothing to rank or synthesize; mirror the blocking endpoint's
		// short-circuit so the client still gets a stage-3 answer.
		send(council.StartEvent(council.EventStage2Start))
		stage2 := []council.Stage2Result{}
		send(council.Stage2CompleteEvent(stage2, council.Metadata{}))
		send(council.StartEvent(council.EventStage3Start))
		stage3 := council.Stage3Result{Model: "error", Response: "All models failed to respond. Please try again."}
		send(council.DataEvent(council.EventStage3Complete, stage3))
		h.finishStream(send, userID, conversationID, isFirst, &titleGroup, &title, stage1, stage2, stage3)
		return
	}

	send(council.StartEvent(council.EventStage2Start))
	stage2, labels, err := h.council.Stage2(ctx, userID, query, stage1)
	if err != nil {
		send(h.streamError(err))
		return
	}
	metadata := council.Metadata{
		LabelToModel:      labels,
		AggregateRankings: council.Aggregate(stage2, labels),
	}
	send(council.Stage2CompleteEvent(stage2, metadata))

	send(council.StartEvent(council.EventStage3Start))
	stage3, err := h.council.Stage3(ctx, userID, query, stage1, stage2)
	if err != nil {
		send(h.streamError(err))
		return
	}
	send(council.DataEvent(council.EventStage3Complete, stage3))

	h.finishStream(send, userID, conversationID, isFirst, &titleGroup, &title, stage1, stage2, stage3)
}

// finishStream emits the title event when one is pending, persists the
// assistant turn, and closes the stream with a complete event.
func (h *ConversationHandler) finishStream(
	send func(council.Event),
	userID, conversationID string,
	isFirst bool,
	titleGroup *errgroup.Group,
	title *string,
	stage1 []council.Stage1Result,
	stage2 []council.Stage2Result,
	stage3 council.Stage3Result,
) {
	if isFirst {
		_ = titleGroup.Wait()
		if err := h.store.UpdateTitle(userID, conversationID, *title); err != nil {
			h.logger.Warn("failed to persist conversation title", zap.Error(err))
		}
		send(council.TitleEvent(*title))
	}

	if err := h.store.AddAssistantMessage(userID, conversationID, stage1, stage2, stage3); err != nil {
		send(council.ErrorEvent("failed to persist response", ""))
		return
	}
	send(council.StartEvent(council.EventComplete))
}

type acceptedMessage struct {
	text    string
	isFirst bool
}

// acceptMessage validates the message request and checks the conversation
// exists. The bool result is false when a response was already written.
func (h *ConversationHandler) acceptMessage(w http.ResponseWriter, r *http.Request, userID, conversationID string) (acceptedMessage, bool) {
	var req sendMessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return acceptedMessage{}, false
	}
	if strings.TrimSpace(req.Content) == "" {
		WriteErrorMessage(w, types.ErrInvalidRequest, "content is required", h.logger)
		return acceptedMessage{}, false
	}

	conv, err := h.store.Get(userID, conversationID)
	if err != nil {
		h.writeStoreError(w, err)
		return acceptedMessage{}, false
	}
	return acceptedMessage{text: req.Content, isFirst: len(conv.Messages) == 0}, true
}

func (h *ConversationHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteErrorMessage(w, types.ErrNotFound, "conversation not found", h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "conversation storage failed").WithCause(err), h.logger)
}

func (h *ConversationHandler) writeCouncilError(w http.ResponseWriter, err error) {
	if typed, ok := err.(*types.Error); ok {
		WriteError(w, typed, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "council run failed").WithCause(err), h.logger)
}

// streamError converts a council failure into the stream's error event.
// Quota exhaustion gets a machine-readable code so the client can tell the
// user to top up instead of retrying.
func (h *ConversationHandler) streamError(err error) council.Event {
	h.logger.Error("council stream failed", zap.Error(err))
	if types.GetErrorCode(err) == types.ErrQuotaExceeded {
		return council.ErrorEvent(err.Error(), council.ErrorCodeQuotaExceeded)
	}
	return council.ErrorEvent(err.Error(), "")
}
