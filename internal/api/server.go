package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Store      SessionStore  // Required
	Pool       *pgxpool.Pool // Optional: nil disables the DB ping in /ready
	TrustProxy bool          // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst  int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the chatbot HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		logger: logger,
		store:  cfg.Store,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", ch.chat)

	// Static client page and favicon
	mux.HandleFunc("GET /{$}", indexPage)
	mux.HandleFunc("GET /favicon.ico", favicon)

	// Fallback patterns keep wrong-method requests inside the fixed JSON
	// shape instead of the mux's plain-text 405.
	mux.HandleFunc("/chat", notFound)
	mux.HandleFunc("/", notFound)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery > RequestID > Logging > RateLimit > Routes
	// RequestID sits before Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
