package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcoot/anonhere/internal/api/apierr"
	"github.com/mcoot/anonhere/internal/api/middleware"
	"github.com/mcoot/anonhere/internal/api/request"
	"github.com/mcoot/anonhere/internal/api/response"
	"github.com/mcoot/anonhere/internal/services/chat"
)

// SessionHandler handles session endpoints
type SessionHandler struct {
	chat   *chat.Service
	logger *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(chatService *chat.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		chat:   chatService,
		logger: logger,
	}
}

// Login handles POST /api/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	sess, err := h.chat.Login(r.Context(), middleware.GetClientIdentity(r), req.Username)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	response.JSON(w, http.StatusCreated, response.LoginFromSession(sess))
}

// Get handles GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())
	response.JSON(w, http.StatusOK, response.MeFromSession(sess))
}

// Logout handles DELETE /api/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())
	h.chat.Logout(r.Context(), sess)

	http.SetCookie(w, &http.Cookie{
		Name:   middleware.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	response.NoContent(w)
}
