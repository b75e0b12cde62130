package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as a JSON response. Every API response is a snapshot of
// ephemeral chat state, so it is marked uncacheable.
func JSON(w http.ResponseWriter, status int, data any) {
	noStore(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes an uncacheable 204 response
func NoContent(w http.ResponseWriter) {
	noStore(w)
	w.WriteHeader(http.StatusNoContent)
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
