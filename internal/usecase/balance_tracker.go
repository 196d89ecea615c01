package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

// BalanceTracker produces normalized balance snapshots for the active pair,
// live or simulated, and appends timestamped records to the balance log.
// It also carries the paper-trading fill state the simulated balances are
// derived from.
type BalanceTracker struct {
	exchange domain.Exchange
	store    domain.SettingsRepository
	logger   *zap.Logger

	asset   string
	counter string

	balances []domain.BotBalance

	lastSide domain.Side
	lastQty  decimal.Decimal
}

func NewBalanceTracker(exchange domain.Exchange, store domain.SettingsRepository, logger *zap.Logger) *BalanceTracker {
	return &BalanceTracker{
		exchange: exchange,
		store:    store,
		logger:   logger,
	}
}

// SetPair points the tracker at a new trading pair.
func (t *BalanceTracker) SetPair(pair string) {
	t.asset, t.counter = domain.SplitPair(pair)
}

func (t *BalanceTracker) Asset() string   { return t.asset }
func (t *BalanceTracker) Counter() string { return t.counter }

// RecordFill stores the side and quantity of the last simulated fill; paper
// balances are synthesized from it.
func (t *BalanceTracker) RecordFill(side domain.Side, qty decimal.Decimal) {
	t.lastSide = side
	t.lastQty = qty
}

// Snapshot returns the per-asset balances for the active pair. In live mode
// the gateway's confirmed, confirming and locked buckets are merged and
// filtered to the pair's two symbols. In paper mode balances are synthetic:
// a non-zero startingQuantity funds the counter asset; otherwise they derive
// from the last simulated fill.
func (t *BalanceTracker) Snapshot(ctx context.Context, s *domain.BotSettings, startingQuantity decimal.Decimal) ([]domain.Balance, error) {
	switch s.TradingStatus {
	case domain.StatusLiveTrading:
		return t.liveBalances(ctx)
	case domain.StatusPaperTrading:
		return t.paperBalances(startingQuantity), nil
	default:
		return nil, nil
	}
}

func (t *BalanceTracker) liveBalances(ctx context.Context) ([]domain.Balance, error) {
	account, err := t.exchange.GetBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}

	byAsset := map[string]*domain.Balance{}
	var order []string
	get := func(asset string) *domain.Balance {
		if b, ok := byAsset[asset]; ok {
			return b
		}
		b := &domain.Balance{Asset: asset}
		byAsset[asset] = b
		order = append(order, asset)
		return b
	}

	for asset, qty := range account.Confirmed {
		if asset != t.asset && asset != t.counter {
			continue
		}
		get(asset).Free = qty
	}
	for asset, entries := range account.Confirming {
		if asset != t.asset && asset != t.counter {
			continue
		}
		b := get(asset)
		for _, e := range entries {
			b.Locked = b.Locked.Add(e.Amount)
		}
	}
	for asset, qty := range account.Locked {
		if asset != t.asset && asset != t.counter {
			continue
		}
		b := get(asset)
		b.Locked = b.Locked.Add(qty)
	}

	out := make([]domain.Balance, 0, len(order))
	for _, asset := range order {
		out = append(out, *byAsset[asset])
	}
	return out, nil
}

func (t *BalanceTracker) paperBalances(startingQuantity decimal.Decimal) []domain.Balance {
	counterQty := decimal.Zero
	assetQty := decimal.Zero

	if startingQuantity.IsPositive() {
		counterQty = startingQuantity
	} else {
		switch t.lastSide {
		case domain.SideBuy:
			assetQty = t.lastQty
		case domain.SideSell:
			counterQty = t.lastQty
		}
	}

	return []domain.Balance{
		{Asset: t.counter, Free: counterQty},
		{Asset: t.asset, Free: assetQty},
	}
}

// SetBalances refreshes the tracked snapshot, seeding paper balances from
// the configured starting amount, and optionally logs it.
func (t *BalanceTracker) SetBalances(ctx context.Context, s *domain.BotSettings, logBalances bool) error {
	return t.refresh(ctx, s, s.StartingAmount, logBalances)
}

// Update recomputes free+locked per asset into timestamped records and
// persists them to the balance log.
func (t *BalanceTracker) Update(ctx context.Context, s *domain.BotSettings) error {
	return t.refresh(ctx, s, decimal.Zero, true)
}

func (t *BalanceTracker) refresh(ctx context.Context, s *domain.BotSettings, startingQuantity decimal.Decimal, logBalances bool) error {
	balances, err := t.Snapshot(ctx, s, startingQuantity)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	t.balances = make([]domain.BotBalance, 0, len(balances))
	for _, b := range balances {
		t.balances = append(t.balances, domain.BotBalance{
			Symbol:    b.Asset,
			Quantity:  b.Free.Add(b.Locked),
			Timestamp: now,
		})
	}

	if logBalances {
		if err := t.store.LogBalances(ctx, t.balances); err != nil {
			t.logger.Error("failed to log balances", zap.Error(err))
		}
	}
	return nil
}

// Current returns the last computed snapshot.
func (t *BalanceTracker) Current() []domain.BotBalance {
	return t.balances
}

// AssetQuantity returns the tracked quantity of the traded asset.
func (t *BalanceTracker) AssetQuantity() decimal.Decimal {
	return t.quantityOf(t.asset)
}

// CounterQuantity returns the tracked quantity of the counter asset.
func (t *BalanceTracker) CounterQuantity() decimal.Decimal {
	return t.quantityOf(t.counter)
}

func (t *BalanceTracker) quantityOf(symbol string) decimal.Decimal {
	for _, b := range t.balances {
		if b.Symbol == symbol {
			return b.Quantity
		}
	}
	return decimal.Zero
}
