package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/anonhere/internal/api/apierr"
	"github.com/mcoot/anonhere/internal/middleware"
)

// writeError writes err as a JSON error response. Causes of 500s are logged
// since the client only sees a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if apierr.Status(err) >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	apierr.WriteError(w, err)
}
