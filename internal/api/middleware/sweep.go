package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/anonhere/internal/services/retention"
)

// Sweeper runs a retention pass at the current time
type Sweeper interface {
	SweepNow(ctx context.Context) (retention.Result, error)
}

// Sweep runs a retention pass before every request so expired data is never
// served. A failed sweep is logged and the request proceeds.
func Sweep(sweeper Sweeper, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := sweeper.SweepNow(r.Context()); err != nil {
				logger.Warn("retention sweep failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
