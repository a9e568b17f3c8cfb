package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/server/handler"
	"github.com/alphadeck/papertrade/internal/server/middleware"
	"github.com/alphadeck/papertrade/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// QuoteRateLimit caps batch market-data requests per client IP per
	// QuoteRateWindow. Zero disables the limit.
	QuoteRateLimit  int
	QuoteRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Market      *handler.MarketHandler
	Trade       *handler.TradeHandler
	Portfolio   *handler.PortfolioHandler
	Transaction *handler.TransactionHandler
	Admin       *handler.AdminHandler
	Broker      *handler.BrokerHandler
}

// Server is the HTTP + WebSocket API for the trading simulation.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux
// and the middleware chain (recover, CORS, logging, session auth) wired
// around it.
func NewServer(cfg Config, handlers Handlers, auth middleware.Authenticator, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Auth endpoints.
	mux.HandleFunc("POST /api/auth/register", handlers.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", handlers.Auth.Login)
	mux.HandleFunc("POST /api/auth/logout", handlers.Auth.Logout)
	mux.HandleFunc("GET /api/auth/me", middleware.RequireUser(handlers.Auth.Me))

	// Batch market data, rate limited per client IP.
	quoteLimit := func(h http.HandlerFunc) http.Handler {
		if cfg.QuoteRateLimit <= 0 || limiter == nil {
			return h
		}
		return middleware.RateLimit(limiter, cfg.QuoteRateLimit, cfg.QuoteRateWindow)(h)
	}
	mux.Handle("POST /api/quote", quoteLimit(handlers.Market.Quotes))
	mux.Handle("POST /api/ohlc", quoteLimit(handlers.Market.OHLC))
	mux.Handle("POST /api/ltp", quoteLimit(handlers.Market.LTP))
	mux.HandleFunc("GET /api/search", handlers.Market.Search)

	// Trading, portfolio, and transactions for the logged-in user.
	mux.HandleFunc("POST /api/trades", middleware.RequireUser(handlers.Trade.Execute))
	mux.HandleFunc("GET /api/trades", middleware.RequireUser(handlers.Trade.List))
	mux.HandleFunc("GET /api/portfolio", middleware.RequireUser(handlers.Portfolio.Holdings))
	mux.HandleFunc("GET /api/portfolio/summary", middleware.RequireUser(handlers.Portfolio.Summary))
	mux.HandleFunc("POST /api/transactions", middleware.RequireUser(handlers.Transaction.Request))
	mux.HandleFunc("GET /api/transactions", middleware.RequireUser(handlers.Transaction.List))

	// Administration.
	mux.HandleFunc("GET /api/admin/users", middleware.RequireAdmin(handlers.Admin.ListUsers))
	mux.HandleFunc("PUT /api/admin/users/{id}/coins", middleware.RequireAdmin(handlers.Admin.AdjustCoins))
	mux.HandleFunc("GET /api/admin/transactions/pending", middleware.RequireAdmin(handlers.Admin.PendingTransactions))
	mux.HandleFunc("PUT /api/admin/transactions/{id}", middleware.RequireAdmin(handlers.Admin.ResolveTransaction))
	mux.HandleFunc("GET /api/admin/trades", middleware.RequireAdmin(handlers.Admin.ListTrades))
	mux.HandleFunc("GET /api/admin/archives", middleware.RequireAdmin(handlers.Admin.ListArchives))
	mux.HandleFunc("GET /api/admin/archives/{path...}", middleware.RequireAdmin(handlers.Admin.GetArchive))

	// Broker token exchange.
	mux.HandleFunc("POST /api/broker/session", middleware.RequireAdmin(handlers.Broker.CreateSession))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Session(auth)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = recoverMiddleware(logger)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
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

// recoverMiddleware is the last-resort boundary: a panicking handler gets
// a 500 JSON response instead of tearing down the process.
func recoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("server: handler panic",
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
