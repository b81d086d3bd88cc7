package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/messaging"
	"github.com/capitalize-ai/proconnect/internal/middleware"
	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/internal/service"
	"github.com/capitalize-ai/proconnect/pkg/logger"
)

// ChatHandler handles the chat page endpoints of the authenticated viewer.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: log.Component("chat_handler"),
	}
}

// DirectoryResponse is the conversation list of the chat page.
type DirectoryResponse struct {
	Conversations  []model.ConversationView `json:"conversations"`
	Loading        bool                     `json:"loading"`
	Selected       string                   `json:"selected,omitempty"`
	RefreshCounter uint64                   `json:"refresh_counter"`
}

// PageState is the full state of a viewer's chat page.
type PageState struct {
	DirectoryResponse
	Thread    messaging.ThreadSnapshot    `json:"thread"`
	Initiator messaging.InitiatorSnapshot `json:"initiator"`
}

func directoryResponse(c *messaging.Controller) DirectoryResponse {
	return DirectoryResponse{
		Conversations:  c.Directory().Conversations(),
		Loading:        c.Directory().Loading(),
		Selected:       c.Selected(),
		RefreshCounter: c.RefreshCounter(),
	}
}

func pageState(c *messaging.Controller) PageState {
	return PageState{
		DirectoryResponse: directoryResponse(c),
		Thread:            c.Thread().Snapshot(),
		Initiator:         c.Initiator().Snapshot(),
	}
}

// controller returns the caller's page controller, writing an error when unavailable.
func (h *ChatHandler) controller(w http.ResponseWriter, r *http.Request) (*messaging.Controller, bool) {
	sess, err := h.chat.Session(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to open chat session")
		return nil, false
	}
	return sess.Controller(), true
}

// State handles GET /api/v1/chat
func (h *ChatHandler) State(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, pageState(c))
}

// Conversations handles GET /api/v1/chat/conversations
func (h *ChatHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, directoryResponse(c))
}

// Select handles PUT /api/v1/chat/selection
func (h *ChatHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req model.SelectConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateOptionalID(req.ConversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	// Only conversations the viewer takes part in can be opened.
	if req.ConversationID != "" && !c.Directory().Has(req.ConversationID) {
		c.Directory().Refresh(r.Context(), messaging.TriggerSelection)
		if !c.Directory().Has(req.ConversationID) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
	}

	if err := c.Select(r.Context(), req.ConversationID); err != nil {
		writeServiceError(w, h.logger, err, "failed to select conversation")
		return
	}
	writeJSON(w, http.StatusOK, c.Thread().Snapshot())
}

// Messages handles GET /api/v1/chat/messages
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Thread().Snapshot())
}

// Draft handles PUT /api/v1/chat/draft
func (h *ChatHandler) Draft(w http.ResponseWriter, r *http.Request) {
	var req model.DraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.Thread().SetDraft(req.Content)
	writeJSON(w, http.StatusOK, c.Thread().Snapshot())
}

// Send handles POST /api/v1/chat/messages. A non-empty content replaces the draft
// before it is submitted.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if req.Content != "" {
		c.Thread().SetDraft(req.Content)
	}

	msg, err := c.Thread().Submit(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to send message")
		return
	}

	h.logger.Debug("message sent",
		zap.String("message_id", msg.ID),
		zap.String("conversation_id", msg.ConversationID),
	)
	writeJSON(w, http.StatusCreated, msg)
}

// OpenInitiator handles POST /api/v1/chat/initiator
func (h *ChatHandler) OpenInitiator(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.Initiator().Open(r.Context())
	writeJSON(w, http.StatusOK, c.Initiator().Snapshot())
}

// CloseInitiator handles DELETE /api/v1/chat/initiator
func (h *ChatHandler) CloseInitiator(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.Initiator().Close()
	w.WriteHeader(http.StatusNoContent)
}

// Candidates handles GET /api/v1/chat/candidates?q=
func (h *ChatHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if err := middleware.ValidateSearchTerm(q); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Has("q") {
		c.Initiator().SetFilter(q)
	}
	writeJSON(w, http.StatusOK, c.Initiator().Snapshot())
}

// StartConversation handles POST /api/v1/chat/conversations
func (h *ChatHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req model.StartConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateID(req.ParticipantID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	conv, err := c.Initiator().Start(r.Context(), req.ParticipantID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to start conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}
