package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mcoot/anonhere/internal/api/apierr"
	"github.com/mcoot/anonhere/internal/api/middleware"
	"github.com/mcoot/anonhere/internal/api/request"
	"github.com/mcoot/anonhere/internal/api/response"
	"github.com/mcoot/anonhere/internal/model"
	"github.com/mcoot/anonhere/internal/services/chat"
)

// MessageHandler handles message endpoints
type MessageHandler struct {
	chat   *chat.Service
	logger *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(chatService *chat.Service, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		chat:   chatService,
		logger: logger,
	}
}

// List handles GET /api/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())

	feed, err := h.chat.ListMessages(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.FeedFromChat(feed))
}

// Send handles POST /api/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())

	var req request.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	if _, err := h.chat.SendMessage(r.Context(), sess, middleware.GetClientIdentity(r), req.Content); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Status{Status: "sent"})
}

// Delete handles DELETE /api/messages
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())

	id, err := messageID(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	if err := h.chat.DeleteMessage(r.Context(), sess, middleware.GetClientIdentity(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Status{Status: "deleted"})
}

// messageID reads the target message from the id query parameter or the body
func messageID(r *http.Request) (model.MessageID, error) {
	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, apierr.NewInvalidRequestError("id must be a positive integer")
		}
		return model.MessageID(id), nil
	}

	var req request.DeleteMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, apierr.NewInvalidRequestError("invalid request body")
	}
	if req.MessageID <= 0 {
		return 0, apierr.NewInvalidRequestError("message_id is required")
	}
	return model.MessageID(req.MessageID), nil
}
