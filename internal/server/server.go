package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/qtosh1/cats-farmer/internal/database"
	"github.com/qtosh1/cats-farmer/internal/status"
	"github.com/qtosh1/cats-farmer/internal/ton"
)

// HistoryStore is the read side of the farm history database.
type HistoryStore interface {
	ListTaskCompletions(ctx context.Context, sessionName string, limit int) ([]database.TaskCompletion, error)
	LatestBalance(ctx context.Context, sessionName string) (*database.BalanceSnapshot, error)
	GetAccount(ctx context.Context, sessionName string) (*database.Account, error)
}

// BalanceService looks up TON balances.
type BalanceService interface {
	GetAccountBalance(ctx context.Context, address string) (*ton.Balance, error)
}

// Options configures the HTTP server instance.
type Options struct {
	Addr     string
	Registry *status.Registry
	// History is nil when no database is configured.
	History HistoryStore
	// Wallet is the payout wallet; empty disables /wallet.
	Wallet    string
	TonClient BalanceService
	Logger    *zap.Logger
}

// Server exposes farm status over HTTP.
type Server struct {
	opts Options
	app  *echo.Echo
}

// New creates a new Server instance.
func New(opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = status.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		opts: opts,
		app:  e,
	}
	s.registerRoutes()
	return s
}

// Start launches the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()

	s.opts.Logger.Info("Status API listening", zap.String("addr", s.opts.Addr))
	err := s.app.Start(s.opts.Addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	return s.app.Shutdown(ctx)
}
