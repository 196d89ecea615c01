package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

// tradeSuccessThreshold is the counter-asset quantity used by the heuristic
// post-trade success check: a buy should leave less than this behind, a sell
// should recover more.
var tradeSuccessThreshold = decimal.NewFromInt(10)

// TradeExecutor places, retries, validates and cancels individual orders,
// routing to the live gateway or synthetic paper fills depending on the
// trading mode.
type TradeExecutor struct {
	exchange domain.Exchange
	store    domain.SettingsRepository
	tracker  *BalanceTracker
	stops    *StopLossManager
	logger   *zap.Logger
	cfg      EngineConfig

	tradeNumber int

	lastBuy   decimal.Decimal
	lastSell  decimal.Decimal
	lastPrice decimal.Decimal
	lastQty   decimal.Decimal
	lastSide  domain.Side
}

func NewTradeExecutor(exchange domain.Exchange, store domain.SettingsRepository, tracker *BalanceTracker, logger *zap.Logger, cfg EngineConfig) *TradeExecutor {
	return &TradeExecutor{
		exchange: exchange,
		store:    store,
		tracker:  tracker,
		logger:   logger,
		cfg:      cfg,
	}
}

// SetStopLossManager wires the stop-loss manager; buys arm protection
// through it and sells clear it before placing.
func (e *TradeExecutor) SetStopLossManager(stops *StopLossManager) {
	e.stops = stops
}

func (e *TradeExecutor) LastBuy() decimal.Decimal  { return e.lastBuy }
func (e *TradeExecutor) LastSell() decimal.Decimal { return e.lastSell }

// TradeQuantity derives the order quantity from the tracked balances: the
// full counter balance at the order price for buys, the full asset balance
// for sells, rounded down to the configured precision.
func (e *TradeExecutor) TradeQuantity(side domain.Side, orderPrice decimal.Decimal) decimal.Decimal {
	var quantity decimal.Decimal
	if side == domain.SideBuy {
		if orderPrice.IsZero() {
			return decimal.Zero
		}
		quantity = e.tracker.CounterQuantity().Div(orderPrice)
	} else {
		quantity = e.tracker.AssetQuantity()
	}
	return quantity.RoundDown(e.cfg.QuantityPrecision)
}

// PlaceTrade routes an order to the gateway or to a synthetic paper fill.
func (e *TradeExecutor) PlaceTrade(ctx context.Context, s *domain.BotSettings, params *domain.TradeParams) (*domain.Order, error) {
	e.tradeNumber++
	switch s.TradingStatus {
	case domain.StatusLiveTrading:
		return e.exchange.PlaceOrder(ctx, params)
	case domain.StatusPaperTrading:
		return e.placePaperTrade(params), nil
	default:
		return nil, nil
	}
}

func (e *TradeExecutor) placePaperTrade(params *domain.TradeParams) *domain.Order {
	return &domain.Order{
		ID:        "paper-" + uuid.NewString(),
		Pair:      params.Pair,
		Side:      params.Side,
		Price:     params.Price,
		Quantity:  params.Quantity,
		Filled:    params.Quantity,
		Status:    domain.OrderStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}
}

// MakeTrade attempts order placement up to the configured attempt budget.
// The quantity is recomputed each attempt and reduced by the attempt index
// so a repeatedly rejected order shrinks instead of looping forever.
// Returns nil when every attempt failed.
func (e *TradeExecutor) MakeTrade(ctx context.Context, s *domain.BotSettings, side domain.Side, orderPrice decimal.Decimal) *domain.Order {
	for i := 0; i < e.cfg.PlaceOrderAttempts; i++ {
		quantity := e.TradeQuantity(side, orderPrice)
		if i > 0 {
			quantity = quantity.Sub(decimal.NewFromInt(int64(i)))
		}
		if quantity.IsNegative() {
			quantity = decimal.Zero
		}

		e.lastPrice = orderPrice
		e.lastQty = quantity
		e.lastSide = side
		e.tracker.RecordFill(side, quantity)

		order, err := e.PlaceTrade(ctx, s, &domain.TradeParams{
			Pair:     s.TradingPair,
			Side:     side,
			Type:     "limit",
			Price:    orderPrice,
			Quantity: quantity,
		})
		if err != nil {
			e.logger.Warn("order placement failed",
				zap.String("pair", s.TradingPair),
				zap.String("side", string(side)),
				zap.Int("attempt", i+1),
				zap.Error(err))
			continue
		}
		if order != nil {
			return order
		}
	}
	return nil
}

// Buy places a buy order, optionally validating the fill and arming a
// stop-loss. Up to two placement attempts are made; an unfilled first
// attempt is retried one tick lower to chase the fill. The result reports
// the heuristic success check, not a hard guarantee.
func (e *TradeExecutor) Buy(ctx context.Context, s *domain.BotSettings, orderPrice decimal.Decimal, tradeType domain.TradeType, placeStopLoss, validate bool) bool {
	var trade *domain.Order
	tradeComplete := false

	for i := 0; i < e.cfg.TradeAttempts && !tradeComplete; i++ {
		trade = e.MakeTrade(ctx, s, domain.SideBuy, orderPrice)
		if trade == nil || trade.ID == "" {
			return false
		}

		if validate {
			tradeComplete = e.ValidateTradeComplete(ctx, s, trade)
		} else {
			tradeComplete = true
		}

		if !tradeComplete {
			if i == e.cfg.TradeAttempts-1 {
				return false
			}
			// Chase a lower fill on the retry.
			orderPrice = orderPrice.Sub(e.cfg.PriceTick)
		}
	}

	if !validate {
		return true
	}

	if err := e.tracker.Update(ctx, s); err != nil {
		e.logger.Error("balance update after buy failed", zap.Error(err))
	}

	e.CaptureTransaction(ctx, orderPrice, trade.Quantity, tradeType)
	e.lastBuy = orderPrice

	if placeStopLoss && e.stops != nil {
		if _, err := e.stops.Place(ctx, s, orderPrice, trade.Quantity); err != nil {
			e.logger.Error("stop loss placement failed", zap.Error(err))
		}
	}

	return e.CheckTradeSuccess(domain.TradeBuy)
}

// Sell places a sell order, cancelling any armed stop-loss first. Retry and
// validation semantics mirror Buy, with the price chased one tick higher.
func (e *TradeExecutor) Sell(ctx context.Context, s *domain.BotSettings, orderPrice decimal.Decimal, tradeType domain.TradeType, validate bool) bool {
	var trade *domain.Order
	tradeComplete := false

	for i := 0; i < e.cfg.TradeAttempts && !tradeComplete; i++ {
		if e.stops != nil {
			e.stops.Cancel(ctx, s)
		}

		trade = e.MakeTrade(ctx, s, domain.SideSell, orderPrice)
		if trade == nil || trade.ID == "" {
			return false
		}

		if validate {
			tradeComplete = e.ValidateTradeComplete(ctx, s, trade)
		} else {
			tradeComplete = true
		}

		if !tradeComplete {
			if i == e.cfg.TradeAttempts-1 {
				return false
			}
			// Chase a higher fill on the retry.
			orderPrice = orderPrice.Add(e.cfg.PriceTick)
		}
	}

	if !validate {
		return true
	}

	if err := e.tracker.Update(ctx, s); err != nil {
		e.logger.Error("balance update after sell failed", zap.Error(err))
	}

	e.CaptureTransaction(ctx, orderPrice, trade.Quantity, tradeType)
	e.lastSell = orderPrice

	return e.CheckTradeSuccess(domain.TradeSell)
}

// CheckTradeSuccess inspects the refreshed balances: a buy should have spent
// the counter asset down below the threshold, a sell should have recovered
// more than it.
func (e *TradeExecutor) CheckTradeSuccess(tradeType domain.TradeType) bool {
	counterQty := e.tracker.CounterQuantity()
	if tradeType == domain.TradeBuy {
		return counterQty.LessThan(tradeSuccessThreshold)
	}
	return counterQty.GreaterThan(tradeSuccessThreshold)
}

// CaptureTransaction appends a trade record to the transaction log.
func (e *TradeExecutor) CaptureTransaction(ctx context.Context, price, quantity decimal.Decimal, tradeType domain.TradeType) {
	info := &domain.TradeInformation{
		Pair:      e.tracker.Asset() + e.tracker.Counter(),
		TradeType: tradeType.String(),
		Price:     price,
		Quantity:  quantity,
		Timestamp: time.Now().UTC(),
	}
	if err := e.store.LogTransaction(ctx, info); err != nil {
		e.logger.Error("failed to log transaction", zap.Error(err))
	}
}

// GetOrderStatus fetches the current remote state of an order. Paper orders
// always report completed.
func (e *TradeExecutor) GetOrderStatus(ctx context.Context, s *domain.BotSettings, orderID string) (*domain.Order, error) {
	switch s.TradingStatus {
	case domain.StatusLiveTrading:
		return e.exchange.GetOrder(ctx, orderID)
	case domain.StatusPaperTrading:
		return &domain.Order{ID: orderID, Status: domain.OrderStatusCompleted}, nil
	default:
		return nil, nil
	}
}

// CheckTradeStatus reports whether an order is confirmed filled.
func (e *TradeExecutor) CheckTradeStatus(ctx context.Context, s *domain.BotSettings, orderID string) bool {
	order, err := e.GetOrderStatus(ctx, s, orderID)
	if err != nil || order == nil {
		return false
	}
	return order.Status == domain.OrderStatusCompleted
}

// ValidateTradeComplete polls the fill status of a placed order, waiting the
// configured validation interval between polls. On exhausting the budget the
// order is cancelled so no stale unfilled order is left outstanding, and the
// validation reports failure.
func (e *TradeExecutor) ValidateTradeComplete(ctx context.Context, s *domain.BotSettings, trade *domain.Order) bool {
	for i := 1; i <= e.cfg.ValidationAttempts; i++ {
		if e.CheckTradeStatus(ctx, s, trade.ID) {
			return true
		}
		if i < e.cfg.ValidationAttempts {
			sleepCtx(ctx, time.Duration(s.TradeValidationCheck)*time.Millisecond)
			continue
		}
		if _, err := e.CancelTrade(ctx, s, trade.ID); err != nil {
			e.logger.Error("failed to cancel unfilled order",
				zap.String("orderId", trade.ID), zap.Error(err))
		}
	}
	return false
}

// CancelTrade cancels a single order, routed by trading mode.
func (e *TradeExecutor) CancelTrade(ctx context.Context, s *domain.BotSettings, orderID string) (*domain.Order, error) {
	switch s.TradingStatus {
	case domain.StatusLiveTrading:
		return e.exchange.CancelOrder(ctx, orderID)
	case domain.StatusPaperTrading:
		return &domain.Order{ID: orderID, Status: domain.OrderStatusCancelled}, nil
	default:
		return nil, nil
	}
}

// CancelAllOpenOrders repeatedly fetches the open orders for the active
// pair, logging a cancellation signal and cancelling each, until the gateway
// reports none remaining.
func (e *TradeExecutor) CancelAllOpenOrders(ctx context.Context, s *domain.BotSettings) bool {
	for {
		openOrders, err := e.exchange.GetOpenOrders(ctx)
		if err != nil {
			e.logger.Error("failed to fetch open orders", zap.Error(err))
			return false
		}

		remaining := 0
		for _, order := range openOrders {
			if order.Pair != s.TradingPair {
				continue
			}
			remaining++

			signal := &domain.TradeSignal{
				Pair:            s.TradingPair,
				Signal:          domain.SignalForStrategy(s.TradingStrategy),
				TradeType:       domain.TradeCancel,
				Price:           order.Price,
				LastBuy:         e.lastBuy,
				LastSell:        e.lastSell,
				TransactionDate: time.Now().UTC(),
			}
			if err := e.store.LogSignal(ctx, signal); err != nil {
				e.logger.Error("failed to log cancellation signal", zap.Error(err))
			}
			if _, err := e.CancelTrade(ctx, s, order.ID); err != nil {
				e.logger.Error("failed to cancel open order",
					zap.String("orderId", order.ID), zap.Error(err))
			}
		}

		if remaining == 0 {
			return true
		}
	}
}

// LastBuySellPrice recovers the most recent completed buy and sell prices
// for the pair from the gateway's order history. Zero values mean no such
// order was found.
func (e *TradeExecutor) LastBuySellPrice(ctx context.Context, s *domain.BotSettings) (lastBuy, lastSell decimal.Decimal) {
	orders, ok := retryFetch(ctx, e.cfg.OrderFetchAttempts, 0,
		func(ctx context.Context) ([]*domain.Order, bool) {
			out, err := e.exchange.GetOrders(ctx, s.TradingPair)
			if err != nil || out == nil {
				return nil, false
			}
			return out, true
		})
	if !ok {
		return decimal.Zero, decimal.Zero
	}

	var completed []*domain.Order
	for _, o := range orders {
		if o.Status == domain.OrderStatusCompleted {
			completed = append(completed, o)
		}
	}
	// Newest first.
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})

	buyFound, sellFound := false, false
	for _, o := range completed {
		if o.Side == domain.SideBuy && !buyFound {
			lastBuy = o.Price
			buyFound = true
		}
		if o.Side == domain.SideSell && !sellFound {
			lastSell = o.Price
			sellFound = true
		}
		if buyFound && sellFound {
			break
		}
	}
	return lastBuy, lastSell
}
