package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

// OrderBookAnalyzer scans the order book for actionable support and
// resistance levels. Computed levels are cached until the next explicit
// recompute request; a cached miss stays a miss until then.
type OrderBookAnalyzer struct {
	exchange domain.Exchange
	logger   *zap.Logger
	cfg      EngineConfig

	support       decimal.Decimal
	hasSupport    bool
	resistance    decimal.Decimal
	hasResistance bool
}

func NewOrderBookAnalyzer(exchange domain.Exchange, logger *zap.Logger, cfg EngineConfig) *OrderBookAnalyzer {
	return &OrderBookAnalyzer{
		exchange: exchange,
		logger:   logger,
		cfg:      cfg,
	}
}

func (a *OrderBookAnalyzer) fetchBook(ctx context.Context, pair string) (*domain.OrderBook, bool) {
	return retryFetch(ctx, a.cfg.BookFetchAttempts, a.cfg.BookFetchDelay,
		func(ctx context.Context) (*domain.OrderBook, bool) {
			book, err := a.exchange.GetOrderBook(ctx, pair)
			if err != nil {
				a.logger.Warn("order book fetch failed", zap.String("pair", pair), zap.Error(err))
				return nil, false
			}
			if book == nil || (len(book.Bids) == 0 && len(book.Asks) == 0) {
				return nil, false
			}
			return book, true
		})
}

func levelValue(e domain.OrderBookEntry) decimal.Decimal {
	return e.Price.Mul(e.Amount)
}

// StalemateCheck reports whether both sides of the book already clear the
// target volume within their first two levels. Competition mode never
// stalemates.
func (a *OrderBookAnalyzer) StalemateCheck(s *domain.BotSettings, bids, asks []domain.OrderBookEntry, volume decimal.Decimal) bool {
	if s.CompetitionActive(time.Now().UnixMilli()) {
		return false
	}
	sideClears := func(levels []domain.OrderBookEntry) bool {
		for i := 0; i < len(levels) && i < 2; i++ {
			if levelValue(levels[i]).GreaterThanOrEqual(volume) {
				return true
			}
		}
		return false
	}
	return sideClears(bids) && sideClears(asks)
}

// ComputeLevel walks one side of the book best-first, accumulating
// price x counter-amount, and returns the first level whose cumulative value
// meets the target volume. The returned detail carries the trimmed price,
// the max decimal precision seen across visited levels and the matched
// position. ok is false when the book is unavailable, stalemated, or no
// level reaches the volume.
func (a *OrderBookAnalyzer) ComputeLevel(ctx context.Context, s *domain.BotSettings, side domain.Side, volume decimal.Decimal) (domain.OrderBookDetail, bool) {
	book, ok := a.fetchBook(ctx, s.TradingPair)
	if !ok {
		return domain.OrderBookDetail{Price: decimal.Zero}, false
	}

	levels := book.Bids
	if side == domain.SideSell {
		levels = book.Asks
	}
	if len(levels) == 0 {
		return domain.OrderBookDetail{Price: decimal.Zero}, false
	}

	// Competition mode acts on the raw first level, no further checks.
	if s.CompetitionActive(time.Now().UnixMilli()) {
		price := domain.TrimZeros(levels[0].Price)
		return domain.OrderBookDetail{
			Price:     price,
			Precision: domain.PrecisionOf(price),
			Position:  0,
		}, true
	}

	if a.StalemateCheck(s, book.Bids, book.Asks, volume) {
		return domain.OrderBookDetail{Price: decimal.Zero}, false
	}

	precision := 0
	cumulative := decimal.Zero
	for i, level := range levels {
		price := domain.TrimZeros(level.Price)
		if p := domain.PrecisionOf(price); p > precision {
			precision = p
		}
		cumulative = cumulative.Add(levelValue(level))
		if cumulative.GreaterThanOrEqual(volume) {
			return domain.OrderBookDetail{
				Price:     price,
				Precision: precision,
				Position:  i,
			}, true
		}
	}

	return domain.OrderBookDetail{Price: decimal.Zero, Precision: precision, Position: len(levels)}, false
}

// Support returns the actionable buy price. With refresh false the cached
// result is returned unchanged and the gateway is not queried. ok is false
// when no actionable level exists; action is deferred for this cycle.
func (a *OrderBookAnalyzer) Support(ctx context.Context, s *domain.BotSettings, refresh bool) (decimal.Decimal, bool) {
	if refresh {
		a.support, a.hasSupport = a.refreshLevel(ctx, s, domain.SideBuy)
	}
	return a.support, a.hasSupport
}

// Resistance returns the actionable sell price, with the same cache
// semantics as Support.
func (a *OrderBookAnalyzer) Resistance(ctx context.Context, s *domain.BotSettings, refresh bool) (decimal.Decimal, bool) {
	if refresh {
		a.resistance, a.hasResistance = a.refreshLevel(ctx, s, domain.SideSell)
	}
	return a.resistance, a.hasResistance
}

func (a *OrderBookAnalyzer) refreshLevel(ctx context.Context, s *domain.BotSettings, side domain.Side) (decimal.Decimal, bool) {
	detail, ok := a.ComputeLevel(ctx, s, side, s.OrderBookQuantity)
	if !ok {
		return decimal.Zero, false
	}

	limit := 3
	if s.CompetitionActive(time.Now().UnixMilli()) {
		limit = 1
	}
	if detail.Position > limit {
		// Level is too deep in the book to act on this cycle.
		return decimal.Zero, false
	}

	price := detail.Price
	if detail.Position != 0 {
		tick := domain.TickAtPrecision(detail.Precision)
		if side == domain.SideSell {
			price = price.Sub(tick)
		} else {
			price = price.Add(tick)
		}
	}
	return price, true
}
