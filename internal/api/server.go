package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/arbscope/cross-chain-arb-engine/internal/config"
	"github.com/arbscope/cross-chain-arb-engine/pkg/metrics"
)

// Server implements the REST API server
type Server struct {
	config          *config.ServerConfig
	server          *http.Server
	handlers        *Handlers
	rateLimiter     *RateLimiterImpl
	websocketServer *WebSocketServer
	logger          zerolog.Logger
}

// NewServer creates a new API server
func NewServer(cfg *config.ServerConfig, handlers *Handlers, ws *WebSocketServer, logger zerolog.Logger) *Server {
	server := &Server{
		config:          cfg,
		handlers:        handlers,
		rateLimiter:     NewRateLimiter(),
		websocketServer: ws,
		logger:          logger.With().Str("component", "http").Logger(),
	}

	server.setupServer()

	return server
}

// setupServer configures routes and middleware
func (s *Server) setupServer() {
	router := mux.NewRouter()

	// Middleware applied to every route
	router.Use(s.loggingMiddleware)
	router.Use(s.rateLimiter.RateLimitMiddleware)

	// Public endpoints
	router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	router.Handle("/metrics", metrics.PrometheusHandler()).Methods("GET")
	router.HandleFunc("/ws", s.websocketServer.HandleWebSocket)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict", s.handlers.Predict).Methods("POST")
	api.HandleFunc("/arbitrage", s.handlers.Arbitrage).Methods("POST")
	api.HandleFunc("/opportunities", s.handlers.GetOpportunities).Methods("GET")
	api.HandleFunc("/opportunities/top", s.handlers.GetTopOpportunities).Methods("GET")
	api.HandleFunc("/opportunities/{id}", s.handlers.GetOpportunityByID).Methods("GET")
	api.HandleFunc("/scan", s.handlers.TriggerScan).Methods("POST")
	api.HandleFunc("/status", s.handlers.GetStatus).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Start starts the API server
func (s *Server) Start(ctx context.Context) error {
	if err := s.websocketServer.Start(ctx); err != nil {
		return fmt.Errorf("start websocket server: %w", err)
	}

	go s.rateLimiterCleanup(ctx)

	s.logger.Info().Str("addr", s.server.Addr).Msg("api server listening")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("api server failed")
		}
	}()

	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	if err := s.websocketServer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("websocket server stop failed")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}

	s.logger.Info().Msg("api server stopped")
	return nil
}

// GetRouter returns the underlying handler, primarily for tests.
func (s *Server) GetRouter() http.Handler {
	return s.server.Handler
}

// loggingMiddleware logs each request with method, path, status and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Str("client", getClientID(r)).
			Msg("request")
	})
}

// rateLimiterCleanup periodically drops idle client buckets.
func (s *Server) rateLimiterCleanup(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rateLimiter.CleanupExpiredClients(time.Hour)
		}
	}
}

// responseWriter captures the status code for logging
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
