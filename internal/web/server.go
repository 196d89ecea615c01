package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
	"switcheo-trader/internal/usecase"
)

// Server exposes the bot control API. Status is public; every mutating or
// sensitive route carries the bot password as a path segment.
type Server struct {
	router *http.ServeMux
	server *http.Server
	engine *usecase.TradeEngine
	store  domain.SettingsRepository
	logger *zap.Logger
}

func NewServer(port int, engine *usecase.TradeEngine, store domain.SettingsRepository, logger *zap.Logger) *Server {
	s := &Server{
		router: http.NewServeMux(),
		engine: engine,
		store:  store,
		logger: logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.recoverer(s.router),
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /api/bot/status", s.handleStatus)

	// Configuration
	s.router.HandleFunc("GET /api/bot/config/{password}", s.handleGetConfig)
	s.router.HandleFunc("POST /api/bot/config/{password}", s.handleUpdateConfig)
	s.router.HandleFunc("GET /api/bot/config/address/{password}", s.handleAddress)
	s.router.HandleFunc("POST /api/bot/config/api/{password}", s.handleUpdateCredentials)

	// Lifecycle
	s.router.HandleFunc("GET /api/bot/start/{password}", s.handleStart)
	s.router.HandleFunc("GET /api/bot/start/{password}/{interval}", s.handleStartInterval)
	s.router.HandleFunc("GET /api/bot/stop/{password}", s.handleStop)

	// History
	s.router.HandleFunc("GET /api/bot/transactions", s.handleTransactions)
	s.router.HandleFunc("GET /api/bot/transactions/{count}", s.handleTransactions)
	s.router.HandleFunc("GET /api/bot/signals", s.handleSignals)
	s.router.HandleFunc("GET /api/bot/signals/{count}", s.handleSignals)
	s.router.HandleFunc("GET /api/bot/balance", s.handleBalance)
	s.router.HandleFunc("GET /api/bot/balance/history", s.handleBalanceHistory)

	// Orders
	s.router.HandleFunc("GET /api/bot/stoploss", s.handleStopLosses)
	s.router.HandleFunc("GET /api/bot/trades/cancel/{password}", s.handleCancelTrades)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					zap.String("path", r.URL.Path), zap.Any("panic", rec))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
