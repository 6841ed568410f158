// Package api exposes the stratrunner HTTP and websocket API.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tradekit/stratrunner/pkg/auth"
	"github.com/tradekit/stratrunner/pkg/config"
	"github.com/tradekit/stratrunner/pkg/eventlog"
	"github.com/tradekit/stratrunner/pkg/middleware"
	"github.com/tradekit/stratrunner/pkg/runtime"
	"github.com/tradekit/stratrunner/pkg/storage"
)

// Server represents the HTTP API server
type Server struct {
	config     *config.Config
	router     *mux.Router
	server     *http.Server
	logger     *eventlog.Logger
	controller *runtime.Controller
	actions    storage.ActionStore
	tokens     *auth.TokenService
	wsManager  *WebSocketManager
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, logger *eventlog.Logger, controller *runtime.Controller, actions storage.ActionStore) *Server {
	s := &Server{
		config:     cfg,
		router:     mux.NewRouter(),
		logger:     logger,
		controller: controller,
		actions:    actions,
		tokens:     auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiration),
		wsManager:  NewWebSocketManager(logger),
	}

	s.setupRoutes()
	return s
}

// WebSocketManagerRef returns the websocket manager so it can be registered
// as the event logger's notifier.
func (s *Server) WebSocketManagerRef() *WebSocketManager {
	return s.wsManager
}

// Handler returns the server's root handler. Used by tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	err := s.server.ListenAndServe()

	// If the server was shut down gracefully, this error is expected
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// API router with version prefix
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Public routes (no authentication required)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)

	// Authenticated routes
	authenticated := api.PathPrefix("").Subrouter()
	if s.config.Auth.Enabled {
		authMiddleware := middleware.NewAuthMiddleware(s.tokens)
		authenticated.Use(authMiddleware.Authenticate)
	}

	// Execution routes
	executions := authenticated.PathPrefix("/executions").Subrouter()
	executions.HandleFunc("/logs", s.handleBatchSnapshot).Methods(http.MethodGet, http.MethodOptions)
	executions.HandleFunc("", s.handleExecute).Methods(http.MethodPost, http.MethodOptions)

	// Subscription audit routes
	subscriptions := authenticated.PathPrefix("/subscriptions").Subrouter()
	subscriptions.HandleFunc("/{id}/actions", s.handleListActions).Methods(http.MethodGet, http.MethodOptions)

	// WebSocket endpoint for live execution updates
	authenticated.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	// Request logging middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("Request: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	// CORS middleware for all routes
	s.router.Use(middleware.CORS)
}

// handleWebSocket upgrades the connection and hands it to the manager
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.GetSubject(r)
	s.wsManager.HandleWebSocket(w, r, subject)
}
