package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/anonhere/internal/model"
	"github.com/mcoot/anonhere/internal/services/chat"
	"github.com/mcoot/anonhere/internal/services/session"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidUsername    = "INVALID_USERNAME"
	CodeInvalidContent     = "INVALID_CONTENT"
	CodeInvalidRoomName    = "INVALID_ROOM_NAME"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeIdentityInUse      = "IDENTITY_IN_USE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeMessageNotFound    = "MESSAGE_NOT_FOUND"
	CodeRoomNotFound       = "ROOM_NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Throttling and ownership
	case errors.Is(err, model.ErrRateLimited):
		return &httpError{http.StatusTooManyRequests, APIError{CodeRateLimited, "Too many requests, slow down"}}
	case errors.Is(err, model.ErrNotMessageAuthor):
		return &httpError{http.StatusForbidden, APIError{CodeForbidden, "You can only delete your own messages"}}

	// Not found
	case errors.Is(err, model.ErrMessageNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeMessageNotFound, "Message not found"}}
	case errors.Is(err, model.ErrRoomNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found or expired"}}

	// Validation
	case errors.Is(err, model.ErrInvalidUsername):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidUsername, "Username must be 1-15 characters"}}
	case errors.Is(err, model.ErrEmptyMessage):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidContent, "Message cannot be empty"}}
	case errors.Is(err, model.ErrMessageTooLong):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidContent, "Message is too long"}}
	case errors.Is(err, model.ErrInvalidRoomName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRoomName, "Room name is too long"}}
	case errors.Is(err, model.ErrInvalidRoomCode):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "Room code must be six digits"}}

	// Sessions
	case errors.Is(err, session.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, session.ErrIdentityInUse):
		return &httpError{http.StatusConflict, APIError{CodeIdentityInUse, "That username is taken, pick another"}}

	case errors.Is(err, chat.ErrNoRoomCode):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeServiceUnavailable, "No room codes available, try again"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
