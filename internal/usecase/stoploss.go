package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// StopLossManager owns the lifecycle of the single protective order per
// pair: place, trigger processing, cancellation. The first list entry is
// the active stop-loss; at most one entry is active at a time.
type StopLossManager struct {
	executor *TradeExecutor
	store    domain.SettingsRepository
	tracker  *BalanceTracker
	logger   *zap.Logger
	cfg      EngineConfig

	open     []domain.OpenStopLoss
	lastSell decimal.Decimal
}

func NewStopLossManager(executor *TradeExecutor, store domain.SettingsRepository, tracker *BalanceTracker, logger *zap.Logger, cfg EngineConfig) *StopLossManager {
	return &StopLossManager{
		executor: executor,
		store:    store,
		tracker:  tracker,
		logger:   logger,
		cfg:      cfg,
	}
}

// Open returns the open stop-loss entries.
func (m *StopLossManager) Open() []domain.OpenStopLoss {
	return m.open
}

// Place submits a protective sell below the purchase price and records the
// open entry. The trigger price is price reduced by the configured stop-loss
// percent.
func (m *StopLossManager) Place(ctx context.Context, s *domain.BotSettings, orderPrice, quantity decimal.Decimal) (*domain.Order, error) {
	stopPercent := s.StopLoss.Abs().Div(oneHundred)
	stopPrice := orderPrice.Sub(orderPrice.Mul(stopPercent))

	order, err := m.executor.PlaceTrade(ctx, s, &domain.TradeParams{
		Pair:     s.TradingPair,
		Side:     domain.SideSell,
		Type:     "stop-loss",
		Price:    stopPrice,
		Quantity: quantity,
	})
	if err != nil || order == nil {
		m.logger.Error("stop loss order not placed",
			zap.String("pair", s.TradingPair), zap.Error(err))
		return nil, err
	}

	m.open = append(m.open, domain.OpenStopLoss{
		Pair:     s.TradingPair,
		OrderID:  order.ID,
		Price:    stopPrice,
		Quantity: quantity,
	})

	m.logger.Info("stop loss armed",
		zap.String("pair", s.TradingPair),
		zap.String("orderId", order.ID),
		zap.String("trigger", stopPrice.String()))

	return order, nil
}

// CheckTriggered processes the active stop-loss when the current price has
// fallen through its trigger. It is a no-op unless an entry exists and the
// price is below the trigger; the remote order must be confirmed filled
// before the entry is processed. Returns the realized sell price when the
// stop was processed.
func (m *StopLossManager) CheckTriggered(ctx context.Context, s *domain.BotSettings, currentPrice decimal.Decimal) (decimal.Decimal, bool) {
	if len(m.open) == 0 || currentPrice.GreaterThanOrEqual(m.open[0].Price) {
		return decimal.Zero, false
	}

	if !m.executor.CheckTradeStatus(ctx, s, m.open[0].OrderID) {
		// Price pierced the trigger but the order has not filled yet.
		return decimal.Zero, false
	}

	m.process(ctx, s)
	return m.lastSell, true
}

func (m *StopLossManager) process(ctx context.Context, s *domain.BotSettings) {
	entry := m.open[0]
	m.open = m.open[1:]
	m.lastSell = entry.Price

	trade := &domain.TradeInformation{
		Pair:      s.TradingPair,
		TradeType: domain.TradeStopLoss.String(),
		Price:     entry.Price,
		Quantity:  entry.Quantity,
		Timestamp: time.Now().UTC(),
	}
	if err := m.store.LogTransaction(ctx, trade); err != nil {
		m.logger.Error("failed to log stop loss trade", zap.Error(err))
	}

	m.tracker.RecordFill(domain.SideSell, entry.Quantity)
	if err := m.tracker.Update(ctx, s); err != nil {
		m.logger.Error("balance update after stop loss failed", zap.Error(err))
	}

	m.logger.Info("stop loss processed",
		zap.String("pair", entry.Pair),
		zap.String("price", entry.Price.String()))
}

// Cancel cancels the active stop-loss and blocks until the cancellation is
// confirmed by polling order status, then drops the entry. With no active
// entry it is a successful no-op.
func (m *StopLossManager) Cancel(ctx context.Context, s *domain.BotSettings) bool {
	if len(m.open) == 0 {
		return true
	}

	orderID := m.open[0].OrderID
	if _, err := m.executor.CancelTrade(ctx, s, orderID); err != nil {
		m.logger.Error("stop loss cancel request failed",
			zap.String("orderId", orderID), zap.Error(err))
		return false
	}

	confirmed := false
	for i := 0; i < m.cfg.CancelPollAttempts; i++ {
		order, err := m.executor.GetOrderStatus(ctx, s, orderID)
		if err == nil && order != nil &&
			(order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusCompleted) {
			confirmed = true
			break
		}
		if !sleepCtx(ctx, time.Duration(s.TradeValidationCheck)*time.Millisecond) {
			break
		}
	}

	if !confirmed {
		m.logger.Error("stop loss cancellation unconfirmed", zap.String("orderId", orderID))
		return false
	}

	m.open = m.open[1:]
	return true
}
