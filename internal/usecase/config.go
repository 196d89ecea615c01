package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EngineConfig bounds the retry loops and fixed price ticks used by the
// trading components. The defaults are empirically tuned values carried over
// from long-running deployments, not structural invariants; tests inject
// zero-delay variants.
type EngineConfig struct {
	// BookFetchAttempts bounds order-book and candlestick fetches.
	BookFetchAttempts int
	// BookFetchDelay is the pause between book fetch attempts.
	BookFetchDelay time.Duration
	// OrderFetchAttempts bounds historical/open order fetches.
	OrderFetchAttempts int
	// PlaceOrderAttempts bounds order placement inside MakeTrade.
	PlaceOrderAttempts int
	// TradeAttempts bounds full buy/sell cycles (placement + validation).
	TradeAttempts int
	// ValidationAttempts bounds fill-status polls before an order is
	// cancelled and the trade reported failed.
	ValidationAttempts int
	// CancelPollAttempts bounds status polls while confirming a stop-loss
	// cancellation.
	CancelPollAttempts int
	// PriceTick is the fixed price adjustment applied when a validated
	// placement does not fill on the first attempt.
	PriceTick decimal.Decimal
	// QuantityPrecision is the decimal place trade quantities are rounded
	// down to.
	QuantityPrecision int32
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BookFetchAttempts:  3,
		BookFetchDelay:     time.Second,
		OrderFetchAttempts: 3,
		PlaceOrderAttempts: 5,
		TradeAttempts:      2,
		ValidationAttempts: 2,
		CancelPollAttempts: 10,
		PriceTick:          decimal.New(1, -2),
		QuantityPrecision:  1,
	}
}

// sleepCtx pauses for d, returning false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryFetch runs fetch until it reports success or attempts are exhausted,
// pausing delay between tries. Transient gateway failures are expressed as
// ok=false, never as panics or terminal errors.
func retryFetch[T any](ctx context.Context, attempts int, delay time.Duration, fetch func(context.Context) (T, bool)) (T, bool) {
	var zero T
	for i := 0; i < attempts; i++ {
		if v, ok := fetch(ctx); ok {
			return v, true
		}
		if i < attempts-1 && !sleepCtx(ctx, delay) {
			return zero, false
		}
	}
	return zero, false
}
