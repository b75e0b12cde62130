package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/anonhere/internal/api/handler"
	"github.com/mcoot/anonhere/internal/api/middleware"
	shared "github.com/mcoot/anonhere/internal/middleware"
	"github.com/mcoot/anonhere/internal/services/chat"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger  *slog.Logger
	Chat    *chat.Service
	Sweeper middleware.Sweeper
	Storage handler.Pinger
	// TrustProxy takes the client identity from X-Forwarded-For
	TrustProxy bool
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.Chat, cfg.Logger)
	messageHandler := handler.NewMessageHandler(cfg.Chat, cfg.Logger)
	roomHandler := handler.NewRoomHandler(cfg.Chat, cfg.Logger)
	healthHandler := handler.NewHealthHandler(cfg.Storage, cfg.Logger)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Chat)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	// API subrouter with common middleware
	api := r.PathPrefix("/api").Subrouter()
	api.Use(shared.RequestID)
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))
	api.Use(middleware.ClientIdentity(cfg.TrustProxy))

	// Health check endpoint (no sweep, no auth)
	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)

	// Chat routes sweep expired data before they run
	chatRoutes := api.NewRoute().Subrouter()
	chatRoutes.Use(middleware.Sweep(cfg.Sweeper, cfg.Logger))

	// Session routes (claiming a name needs no token)
	chatRoutes.HandleFunc("/session", sessionHandler.Login).Methods(http.MethodPost)
	chatRoutes.Handle("/session", protected(sessionHandler.Get)).Methods(http.MethodGet)
	chatRoutes.Handle("/session", protected(sessionHandler.Logout)).Methods(http.MethodDelete)

	// Message routes
	chatRoutes.Handle("/messages", protected(messageHandler.List)).Methods(http.MethodGet)
	chatRoutes.Handle("/messages", protected(messageHandler.Send)).Methods(http.MethodPost)
	chatRoutes.Handle("/messages", protected(messageHandler.Delete)).Methods(http.MethodDelete)

	// Room routes
	chatRoutes.Handle("/rooms", protected(roomHandler.Create)).Methods(http.MethodPost)
	chatRoutes.Handle("/rooms/join", protected(roomHandler.Join)).Methods(http.MethodPost)
	chatRoutes.Handle("/rooms/leave", protected(roomHandler.Leave)).Methods(http.MethodPost)
	chatRoutes.Handle("/rooms/current", protected(roomHandler.Current)).Methods(http.MethodGet)

	return r
}
