package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// authorized gates a handler on the password path segment.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if !s.engine.ValidatePassword(r.PathValue("password")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := s.engine.Settings()
	s.writeJSON(w, map[string]any{
		"running":         s.engine.Running(),
		"tradingPair":     settings.TradingPair,
		"tradingStrategy": settings.TradingStrategy.String(),
		"tradingStatus":   settings.TradingStatus.String(),
		"chartInterval":   settings.ChartInterval.String(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.writeJSON(w, s.engine.Settings())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	var incoming domain.BotSettings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.engine.ApplySettings(r.Context(), &incoming); err != nil {
		s.logger.Error("Failed to apply settings", zap.Error(err))
		http.Error(w, "Failed to apply settings", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, s.engine.Settings())
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	address, err := s.engine.Address(r.Context())
	if err != nil {
		s.logger.Error("Failed to get wallet address", zap.Error(err))
		http.Error(w, "Failed to get wallet address", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]string{"address": address})
}

func (s *Server) handleUpdateCredentials(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.engine.UpdateCredentials(r.Context(), &creds); err != nil {
		s.logger.Error("Failed to update credentials", zap.Error(err))
		http.Error(w, "Failed to update credentials", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	// Without an explicit interval the bot starts on one-minute sticks.
	s.writeJSON(w, map[string]bool{"started": s.engine.Start(domain.OneM)})
}

func (s *Server) handleStartInterval(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	interval := domain.ParseInterval(r.PathValue("interval"))
	s.writeJSON(w, map[string]bool{"started": s.engine.Start(interval)})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.writeJSON(w, map[string]bool{"stopped": s.engine.Stop()})
}

// pathCount parses the optional {count} segment; zero means everything.
func pathCount(r *http.Request) int {
	count, err := strconv.Atoi(r.PathValue("count"))
	if err != nil || count < 0 {
		return 0
	}
	return count
}

// lastN returns the newest count entries, newest first. The store hands back
// oldest-first.
func lastN[T any](items []T, count int) []T {
	out := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
		if count > 0 && len(out) == count {
			break
		}
	}
	return out
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.store.GetTransactions(r.Context())
	if err != nil {
		s.logger.Error("Failed to list transactions", zap.Error(err))
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, lastN(transactions, pathCount(r)))
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.store.GetSignals(r.Context())
	if err != nil {
		s.logger.Error("Failed to list signals", zap.Error(err))
		http.Error(w, "Failed to list signals", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, lastN(signals, pathCount(r)))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.store.GetBalances(r.Context())
	if err != nil {
		s.logger.Error("Failed to list balances", zap.Error(err))
		http.Error(w, "Failed to list balances", http.StatusInternalServerError)
		return
	}
	if len(snapshots) == 0 {
		s.writeJSON(w, []domain.BotBalance{})
		return
	}
	s.writeJSON(w, snapshots[len(snapshots)-1])
}

func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.store.GetBalances(r.Context())
	if err != nil {
		s.logger.Error("Failed to list balance history", zap.Error(err))
		http.Error(w, "Failed to list balance history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, snapshots)
}

func (s *Server) handleStopLosses(w http.ResponseWriter, r *http.Request) {
	open := s.engine.StopLosses()
	if open == nil {
		open = []domain.OpenStopLoss{}
	}
	s.writeJSON(w, open)
}

func (s *Server) handleCancelTrades(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.writeJSON(w, map[string]bool{"cancelled": s.engine.CancelAllOpenOrders(r.Context())})
}
