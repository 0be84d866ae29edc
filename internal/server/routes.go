package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qtosh1/cats-farmer/internal/database"
	"github.com/qtosh1/cats-farmer/internal/status"
	"github.com/qtosh1/cats-farmer/internal/ton"
)

const maxHistoryLimit = 500

// sessionView is a live snapshot plus the stored account, when history is on.
type sessionView struct {
	status.Snapshot
	Account *database.Account `json:"account,omitempty"`
}

func (s *Server) registerRoutes() {
	e := s.app

	e.GET("/health", s.handleHealth)
	e.GET("/sessions", s.handleListSessions)
	e.GET("/sessions/:name", s.handleGetSession)
	e.GET("/history/:name", s.handleHistory)
	e.GET("/wallet", s.handleWallet)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":       true,
		"sessions": len(s.opts.Registry.List()),
		"history":  s.opts.History != nil,
	})
}

func (s *Server) handleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.opts.Registry.List())
}

func (s *Server) handleGetSession(c echo.Context) error {
	name := c.Param("name")
	snap, ok := s.opts.Registry.Get(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not_found")
	}
	view := sessionView{Snapshot: snap}
	if s.opts.History != nil {
		acc, err := s.opts.History.GetAccount(c.Request().Context(), name)
		if err != nil {
			s.opts.Logger.Warn("Account lookup failed", zap.String("session", name), zap.Error(err))
		}
		view.Account = acc
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.opts.History == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history_disabled")
	}
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	name := c.Param("name")
	ctx := c.Request().Context()
	tasks, err := s.opts.History.ListTaskCompletions(ctx, name, limit)
	if err != nil {
		s.opts.Logger.Warn("History lookup failed", zap.String("session", name), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "fetch_failed")
	}
	balance, err := s.opts.History.LatestBalance(ctx, name)
	if err != nil {
		s.opts.Logger.Warn("Balance lookup failed", zap.String("session", name), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "fetch_failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session": name,
		"tasks":   tasks,
		"balance": balance,
	})
}

func (s *Server) handleWallet(c echo.Context) error {
	if s.opts.Wallet == "" {
		return echo.NewHTTPError(http.StatusNotFound, "wallet_not_configured")
	}
	formats, err := ton.Formats(s.opts.Wallet)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "invalid_wallet")
	}
	resp := map[string]any{
		"bounceable":     formats.Bounceable,
		"non_bounceable": formats.NonBounceable,
		"raw":            formats.Raw,
	}
	if s.opts.TonClient != nil {
		bal, err := s.opts.TonClient.GetAccountBalance(c.Request().Context(), formats.Bounceable)
		if err != nil {
			resp["balance_error"] = err.Error()
		} else {
			resp["balance_nton"] = bal.Nano
			resp["balance_ton"] = bal.Ton
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}
