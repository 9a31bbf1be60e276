package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
	"github.com/alanyoungcy/prophyt-api/internal/server/handler"
	"github.com/alanyoungcy/prophyt-api/internal/server/middleware"
	"github.com/alanyoungcy/prophyt-api/internal/server/ws"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// ExposeErrorDetails adds panic values to 500 responses.
	ExposeErrorDetails bool
	MaxBodyBytes       int64

	// RateLimiter enables per-client limiting when non-nil.
	RateLimiter     domain.RateLimiter
	RateLimit       int
	RateLimitWindow time.Duration
	// TrustedProxies may set the client address via forwarding headers.
	TrustedProxies []netip.Prefix
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Users     *handler.UserHandler
	Bets      *handler.BetHandler
	Protocols *handler.ProtocolHandler
	Oracle    *handler.OracleHandler
	Charts    *handler.ChartHandler
	// AllowRefresh registers POST /api/oracle/price/refresh.
	AllowRefresh bool
}

// Server is the HTTP and WebSocket front of the read API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewHandler(cfg, handlers, wsHub, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handler.Root)
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{marketId}", handlers.Markets.GetMarket)

	mux.HandleFunc("GET /api/users/{address}/bets", handlers.Users.ListUserBets)

	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("GET /api/bets/{betId}", handlers.Bets.GetBet)

	mux.HandleFunc("GET /api/protocols", handlers.Protocols.ListProtocols)
	mux.HandleFunc("GET /api/protocols/{protocolId}", handlers.Protocols.GetProtocol)

	mux.HandleFunc("GET /api/oracle/price/latest", handlers.Oracle.LatestPrice)
	mux.HandleFunc("GET /api/oracle/price/history", handlers.Oracle.PriceHistory)
	if handlers.AllowRefresh {
		mux.HandleFunc("POST /api/oracle/price/refresh", handlers.Oracle.RefreshPrice)
	}

	mux.HandleFunc("GET /api/charts/market/{marketId}", handlers.Charts.MarketChart)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	mux.HandleFunc("/", handler.NotFound)

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}

	mws := []func(http.Handler) http.Handler{
		middleware.Recover(logger, cfg.ExposeErrorDetails),
		middleware.CORS(cfg.CORSOrigins),
		middleware.RequestID(),
		middleware.Logging(logger),
	}
	if cfg.RateLimiter != nil && cfg.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, cfg.RateLimitWindow, cfg.TrustedProxies, logger))
	}
	mws = append(mws, middleware.BodyLimit(maxBody))

	return middleware.Chain(mux, mws...)
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server: starting", slog.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
