package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/anonhere/internal/api/apierr"
	"github.com/mcoot/anonhere/internal/api/middleware"
	"github.com/mcoot/anonhere/internal/api/request"
	"github.com/mcoot/anonhere/internal/api/response"
	"github.com/mcoot/anonhere/internal/services/chat"
)

// RoomHandler handles private room endpoints
type RoomHandler struct {
	chat   *chat.Service
	logger *slog.Logger
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(chatService *chat.Service, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		chat:   chatService,
		logger: logger,
	}
}

// Create handles POST /api/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())

	// The body is optional; an empty one gets the default room name
	var req request.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	room, err := h.chat.CreateRoom(r.Context(), sess, middleware.GetClientIdentity(r), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RoomFromModel(room, h.chat.RoomTTL()))
}

// Join handles POST /api/rooms/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())

	var req request.JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	room, err := h.chat.JoinRoom(r.Context(), sess, middleware.GetClientIdentity(r), req.Code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomFromModel(room, h.chat.RoomTTL()))
}

// Leave handles POST /api/rooms/leave
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())

	if err := h.chat.LeaveRoom(r.Context(), sess); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Status{Status: "global"})
}

// Current handles GET /api/rooms/current
func (h *RoomHandler) Current(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())

	room, err := h.chat.CurrentRoom(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var resp response.CurrentRoom
	if room != nil {
		rr := response.RoomFromModel(room, h.chat.RoomTTL())
		resp.Room = &rr
	}
	response.JSON(w, http.StatusOK, resp)
}
