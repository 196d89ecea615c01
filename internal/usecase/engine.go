package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

// Dust thresholds used to decide the trading direction from balances.
var (
	minFiatQuantity  = decimal.NewFromInt(10)
	minCoinQuantity  = decimal.NewFromFloat(0.0002)
	minAssetQuantity = decimal.NewFromFloat(0.5)
)

// TradeEngine orchestrates the trading cycle: settings, balance snapshot,
// signal, execution, stop-loss. It owns the active BotSettings exclusively;
// updates are merged and swapped in only at cycle boundaries, and a single
// goroutine runs the cycles, so no trading state is mutated concurrently
// with an in-flight trade.
type TradeEngine struct {
	store    domain.SettingsRepository
	exchange domain.Exchange
	logger   *zap.Logger
	cfg      EngineConfig

	tracker  *BalanceTracker
	analyzer *OrderBookAnalyzer
	executor *TradeExecutor
	stops    *StopLossManager

	settings *domain.BotSettings

	mu          sync.Mutex
	running     bool
	stop        chan struct{}
	done        chan struct{}
	pending     *domain.BotSettings
	pushedPrice decimal.Decimal
	hasPushed   bool
}

// priceStream is the optional push interface a gateway may expose; the
// engine subscribes to it for the freshest last-trade price.
type priceStream interface {
	OnPriceUpdate(func(pair string, price decimal.Decimal))
}

func NewTradeEngine(ctx context.Context, store domain.SettingsRepository, exchange domain.Exchange, logger *zap.Logger, cfg EngineConfig) (*TradeEngine, error) {
	settings, err := store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	tracker := NewBalanceTracker(exchange, store, logger)
	executor := NewTradeExecutor(exchange, store, tracker, logger, cfg)
	stops := NewStopLossManager(executor, store, tracker, logger, cfg)
	executor.SetStopLossManager(stops)

	e := &TradeEngine{
		store:    store,
		exchange: exchange,
		logger:   logger,
		cfg:      cfg,
		tracker:  tracker,
		analyzer: NewOrderBookAnalyzer(exchange, logger, cfg),
		executor: executor,
		stops:    stops,
	}
	e.reconfigure(settings)

	if stream, ok := exchange.(priceStream); ok {
		stream.OnPriceUpdate(e.pushPrice)
	}
	return e, nil
}

// pushPrice records a streamed last-trade price for the active pair; the
// stop-loss watch prefers it over polling candlesticks.
func (e *TradeEngine) pushPrice(pair string, price decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pair != e.settings.TradingPair || !price.IsPositive() {
		return
	}
	e.pushedPrice = price
	e.hasPushed = true
}

// stopLossPrice is the freshest known price: the last streamed trade when
// one has arrived, otherwise the newest candle close.
func (e *TradeEngine) stopLossPrice(ctx context.Context, s *domain.BotSettings) (decimal.Decimal, bool) {
	e.mu.Lock()
	price, ok := e.pushedPrice, e.hasPushed
	e.mu.Unlock()
	if ok {
		return price, true
	}
	return e.currentPrice(ctx, s)
}

func (e *TradeEngine) reconfigure(settings *domain.BotSettings) {
	e.settings = settings
	e.tracker.SetPair(settings.TradingPair)
}

// Settings returns a copy of the active settings.
func (e *TradeEngine) Settings() domain.BotSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.settings
}

// ValidatePassword reports whether the attempt matches the bot password.
func (e *TradeEngine) ValidatePassword(attempt string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.BotPassword == attempt
}

// StopLosses returns the open stop-loss entries.
func (e *TradeEngine) StopLosses() []domain.OpenStopLoss {
	return e.stops.Open()
}

// Address returns the exchange wallet address.
func (e *TradeEngine) Address(ctx context.Context) (string, error) {
	wallet, err := e.exchange.GetWallet(ctx)
	if err != nil {
		return "", err
	}
	return wallet.Address, nil
}

// CancelAllOpenOrders cancels every open order for the active pair.
func (e *TradeEngine) CancelAllOpenOrders(ctx context.Context) bool {
	e.mu.Lock()
	s := e.settings
	e.mu.Unlock()
	return e.executor.CancelAllOpenOrders(ctx, s)
}

// ApplySettings merges incoming settings into the active ones using the
// per-field merge policy. While the engine runs, the merge is deferred to
// the next cycle boundary; settings are never swapped mid-trade.
func (e *TradeEngine) ApplySettings(ctx context.Context, incoming *domain.BotSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.pending = incoming
		return nil
	}

	merged := domain.MergeSettings(e.settings, incoming)
	if err := e.store.UpdateSettings(ctx, merged); err != nil {
		return err
	}
	e.reconfigure(merged)
	return nil
}

// UpdateCredentials persists new exchange credentials and re-keys the
// gateway when it supports it.
func (e *TradeEngine) UpdateCredentials(ctx context.Context, creds *domain.Credentials) error {
	if err := e.store.SetCredentials(ctx, creds); err != nil {
		return err
	}
	if rk, ok := e.exchange.(interface{ SetWIF(string) }); ok {
		rk.SetWIF(creds.WIF)
	}
	return nil
}

func (e *TradeEngine) applyPending(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return
	}
	merged := domain.MergeSettings(e.settings, e.pending)
	e.pending = nil
	if err := e.store.UpdateSettings(ctx, merged); err != nil {
		e.logger.Error("failed to persist merged settings", zap.Error(err))
		return
	}
	e.reconfigure(merged)
}

// Running reports whether the cycle loop is active.
func (e *TradeEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start launches the trading loop on the given candlestick interval.
// Returns false if the engine is already running.
func (e *TradeEngine) Start(interval domain.Interval) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}

	e.settings.ChartInterval = interval
	e.settings.RunBot = true
	if err := e.store.UpdateSettings(context.Background(), e.settings); err != nil {
		e.logger.Error("failed to persist settings on start", zap.Error(err))
	}

	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.run()

	e.logger.Info("trade engine started",
		zap.String("pair", e.settings.TradingPair),
		zap.String("interval", interval.String()),
		zap.String("mode", e.settings.TradingStatus.String()))
	return true
}

// Stop requests the loop to end; the request takes effect at the next cycle
// boundary, never mid-cycle.
func (e *TradeEngine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false
	}
	e.settings.RunBot = false
	close(e.stop)
	e.logger.Info("trade engine stop requested")
	return true
}

func (e *TradeEngine) run() {
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.done)
	}()

	ctx := context.Background()

	// Recover the last traded prices from the exchange history on a fresh
	// live start.
	e.mu.Lock()
	s := e.settings
	e.mu.Unlock()
	if s.TradingStatus == domain.StatusLiveTrading && s.LastBuy.IsZero() && s.LastSell.IsZero() {
		lastBuy, lastSell := e.executor.LastBuySellPrice(ctx, s)
		e.mu.Lock()
		e.settings.LastBuy = lastBuy
		e.settings.LastSell = lastSell
		e.mu.Unlock()
	}

	for {
		select {
		case <-e.stop:
			return
		default:
		}

		e.applyPending(ctx)
		e.RunCycle(ctx)

		e.mu.Lock()
		pause := time.Duration(e.settings.PriceCheck) * time.Millisecond
		e.mu.Unlock()

		select {
		case <-e.stop:
			return
		case <-time.After(pause):
		}
	}
}

// RunCycle executes one full trading cycle: refresh balances, watch the
// stop-loss, derive a signal from the configured strategy and act on it.
// Failures abandon the cycle; the next one starts fresh.
func (e *TradeEngine) RunCycle(ctx context.Context) {
	e.mu.Lock()
	s := e.settings
	e.mu.Unlock()

	direction := e.tradingDirection(ctx, s)

	if s.StopLossCheck && len(e.stops.Open()) > 0 {
		if price, ok := e.stopLossPrice(ctx, s); ok {
			if realized, hit := e.stops.CheckTriggered(ctx, s, price); hit {
				e.mu.Lock()
				e.settings.LastSell = realized
				e.mu.Unlock()
				e.persistSettings(ctx)
				return
			}
		}
	}

	switch s.TradingStrategy {
	case domain.StrategyOrderBook:
		e.orderBookCycle(ctx, s, direction)
	case domain.StrategyPercentage, domain.StrategyVolume:
		e.percentageCycle(ctx, s, direction)
	}
}

// tradingDirection snapshots balances and decides whether the cycle should
// look for a buy, a sell, or nothing. Balances below the dust thresholds on
// both sides mean there is nothing to trade with.
func (e *TradeEngine) tradingDirection(ctx context.Context, s *domain.BotSettings) domain.TradeType {
	if err := e.tracker.SetBalances(ctx, s, true); err != nil {
		e.logger.Error("balance snapshot failed", zap.Error(err))
		return domain.TradeNone
	}

	assetQty := e.tracker.AssetQuantity()
	counterQty := e.tracker.CounterQuantity()
	asset := e.tracker.Asset()
	counter := e.tracker.Counter()

	lowCounter := ((counter == "USD" || counter == "USDT") && counterQty.LessThan(minFiatQuantity)) ||
		((counter == "BTC" || counter == "ETH") && counterQty.LessThan(minCoinQuantity))
	if !lowCounter {
		return domain.TradeBuy
	}

	if ((asset == "BTC" || asset == "ETH") && assetQty.LessThan(minCoinQuantity)) ||
		assetQty.LessThan(minAssetQuantity) {
		return domain.TradeNone
	}
	return domain.TradeSell
}

func (e *TradeEngine) orderBookCycle(ctx context.Context, s *domain.BotSettings, direction domain.TradeType) {
	switch direction {
	case domain.TradeBuy:
		price, ok := e.analyzer.Support(ctx, s, true)
		e.logSignal(ctx, s, domain.TradeBuy, price, s.OrderBookQuantity)
		if !ok || !price.IsPositive() {
			return
		}
		buyPrice := e.awaitBuyDip(ctx, s, price)
		if e.executor.Buy(ctx, s, buyPrice, domain.TradeBuy, s.StopLossCheck, true) {
			e.recordLastTrade(ctx, domain.SideBuy)
		}

	case domain.TradeSell:
		price, ok := e.analyzer.Resistance(ctx, s, true)
		e.logSignal(ctx, s, domain.TradeSell, price, s.OrderBookQuantity)
		if !ok || !price.IsPositive() {
			return
		}
		sellPrice := e.awaitSellPeak(ctx, s, price)
		if e.executor.Sell(ctx, s, sellPrice, domain.TradeSell, true) {
			e.recordLastTrade(ctx, domain.SideSell)
		}

	default:
		e.logSignal(ctx, s, domain.TradeNone, decimal.Zero, decimal.Zero)
	}
}

func (e *TradeEngine) percentageCycle(ctx context.Context, s *domain.BotSettings, direction domain.TradeType) {
	price, ok := e.currentPrice(ctx, s)
	if !ok {
		return
	}

	switch direction {
	case domain.TradeBuy:
		e.logSignal(ctx, s, domain.TradeBuy, price, decimal.Zero)
		if !s.LastSell.IsPositive() {
			return
		}
		target := s.LastSell.Mul(decimal.NewFromInt(1).Sub(s.BuyPercent.Div(oneHundred)))
		if price.GreaterThan(target) {
			return
		}
		buyPrice := e.awaitBuyDip(ctx, s, price)
		if e.executor.Buy(ctx, s, buyPrice, domain.TradeBuy, s.StopLossCheck, true) {
			e.recordLastTrade(ctx, domain.SideBuy)
		}

	case domain.TradeSell:
		e.logSignal(ctx, s, domain.TradeSell, price, decimal.Zero)
		if !s.LastBuy.IsPositive() {
			return
		}
		target := s.LastBuy.Mul(decimal.NewFromInt(1).Add(s.SellPercent.Div(oneHundred)))
		if price.LessThan(target) {
			return
		}
		sellPrice := e.awaitSellPeak(ctx, s, price)
		if e.executor.Sell(ctx, s, sellPrice, domain.TradeSell, true) {
			e.recordLastTrade(ctx, domain.SideSell)
		}
	}
}

func (e *TradeEngine) recordLastTrade(ctx context.Context, side domain.Side) {
	e.mu.Lock()
	if side == domain.SideBuy {
		e.settings.LastBuy = e.executor.LastBuy()
	} else {
		e.settings.LastSell = e.executor.LastSell()
	}
	e.mu.Unlock()
	e.persistSettings(ctx)
}

func (e *TradeEngine) persistSettings(ctx context.Context) {
	e.mu.Lock()
	s := *e.settings
	e.mu.Unlock()
	if err := e.store.UpdateSettings(ctx, &s); err != nil {
		e.logger.Error("failed to persist settings", zap.Error(err))
	}
}

func (e *TradeEngine) logSignal(ctx context.Context, s *domain.BotSettings, tradeType domain.TradeType, price, volume decimal.Decimal) {
	signal := &domain.TradeSignal{
		Pair:            s.TradingPair,
		Signal:          domain.SignalForStrategy(s.TradingStrategy),
		TradeType:       tradeType,
		Price:           price,
		CurrentVolume:   volume,
		LastBuy:         s.LastBuy,
		LastSell:        s.LastSell,
		TransactionDate: time.Now().UTC(),
	}
	if err := e.store.LogSignal(ctx, signal); err != nil {
		e.logger.Error("failed to log signal", zap.Error(err))
	}
}

// currentPrice is the close of the most recent candlestick.
func (e *TradeEngine) currentPrice(ctx context.Context, s *domain.BotSettings) (decimal.Decimal, bool) {
	sticks := e.candlesticks(ctx, s, 2)
	if len(sticks) == 0 {
		return decimal.Zero, false
	}
	return sticks[0].Close, true
}

func (e *TradeEngine) candlesticks(ctx context.Context, s *domain.BotSettings, count int) []domain.Candle {
	sticks, _ := retryFetch(ctx, e.cfg.BookFetchAttempts, e.cfg.BookFetchDelay,
		func(ctx context.Context) ([]domain.Candle, bool) {
			out, err := e.exchange.GetCandlesticks(ctx, s.TradingPair, s.ChartInterval, 0, count)
			if err != nil || len(out) == 0 {
				return nil, false
			}
			return out, true
		})
	return sticks
}

// nextCandlesticks waits out the observation window before sampling the
// newest two sticks.
func (e *TradeEngine) nextCandlesticks(ctx context.Context, s *domain.BotSettings) []domain.Candle {
	if !sleepCtx(ctx, time.Duration(s.MooningTankingTime)*time.Millisecond) {
		return nil
	}
	return e.candlesticks(ctx, s, 2)
}

// awaitBuyDip watches candlesticks while the price keeps tanking below the
// starting price and returns the price to buy at once the drop stalls.
func (e *TradeEngine) awaitBuyDip(ctx context.Context, s *domain.BotSettings, startingPrice decimal.Decimal) decimal.Decimal {
	var prevClose decimal.Decimal
	havePrev := false
	iteration := 0

	for {
		sticks := e.nextCandlesticks(ctx, s)
		if len(sticks) < 2 {
			return startingPrice
		}
		current, last := sticks[0], sticks[1]
		if !havePrev {
			prevClose = last.Close
			havePrev = true
		}

		dropping := startingPrice.IsPositive() &&
			startingPrice.GreaterThan(current.Close) &&
			current.Open.GreaterThan(current.Close) &&
			last.Close.GreaterThan(current.Close) &&
			prevClose.GreaterThan(current.Close)
		if dropping {
			iteration++
			prevClose = last.Close
			continue
		}

		if iteration == 0 {
			return startingPrice
		}
		return current.Close
	}
}

// awaitSellPeak watches candlesticks while the price keeps mooning above
// the starting price and returns the price to sell at once the climb stalls.
func (e *TradeEngine) awaitSellPeak(ctx context.Context, s *domain.BotSettings, startingPrice decimal.Decimal) decimal.Decimal {
	var prevClose decimal.Decimal
	havePrev := false
	iteration := 0

	for {
		sticks := e.nextCandlesticks(ctx, s)
		if len(sticks) < 2 {
			return startingPrice
		}
		current, last := sticks[0], sticks[1]
		if !havePrev {
			prevClose = last.Close
			havePrev = true
		}

		climbing := startingPrice.IsPositive() &&
			startingPrice.LessThan(current.Close) &&
			current.Open.LessThan(current.Close) &&
			prevClose.LessThan(current.Close)
		if climbing {
			iteration++
			prevClose = last.Close
			continue
		}

		if iteration == 0 {
			return startingPrice
		}
		return current.Close
	}
}
