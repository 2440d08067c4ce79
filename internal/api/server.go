package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"arena/internal/config"
	"arena/internal/game"
	"arena/internal/protocol"

	"github.com/go-chi/chi/v5"
)

// ArenaEngine is everything the server needs from the engine
type ArenaEngine interface {
	EngineInterface
	SessionEngine
	SetBroadcaster(b game.Broadcaster)
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for real-time updates.
type Server struct {
	engine      ArenaEngine
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server and installs its hub as the engine's
// broadcaster.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine ArenaEngine, cfg config.AppConfig) (*Server, error) {
	codec, err := protocol.CodecByName(cfg.Server.WireCodec)
	if err != nil {
		return nil, fmt.Errorf("wire codec: %w", err)
	}
	origins := NewOriginPolicy(cfg.Server.AllowedOrigins)

	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(engine, cfg.Limits, origins, codec),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}
	engine.SetBroadcaster(s.wsHub)

	// Build router using the factory
	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		RateLimiter: s.rateLimiter,
		Origins:     origins,
	})

	// Add WebSocket routes (these need the wsHub instance)
	s.setupWebSocketRoutes()

	return s, nil
}

// setupWebSocketRoutes adds WebSocket-specific routes to the router.
// These routes need access to the wsHub instance, so they can't be
// part of the generic NewRouter factory.
func (s *Server) setupWebSocketRoutes() {
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
}

// Start begins the HTTP server AND starts background workers.
// This is the ONLY method that starts goroutines or opens network listeners.
// It blocks until the server stops; http.ErrServerClosed means Shutdown
// was called.
func (s *Server) Start(addr string) error {
	// Start background workers NOW, not in constructor
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 WebSocket endpoint: ws://localhost%s/ws", addr)

	return s.httpServer.ListenAndServe()
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
//
// Example:
//
//	server, _ := api.NewServer(engine, config.Default())
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/state")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub. Tests that use Router() run it themselves.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting connections, closes every session and waits for
// in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.Stop()
	return err
}

// Stop performs graceful shutdown of background workers.
func (s *Server) Stop() {
	s.wsHub.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
