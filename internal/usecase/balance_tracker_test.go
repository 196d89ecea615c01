package usecase

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

func TestLiveBalancesThreeBucketMerge(t *testing.T) {
	s := paperSettings()
	s.TradingStatus = domain.StatusLiveTrading

	ex := &mockExchange{
		getBalances: func(ctx context.Context) (*domain.AccountBalances, error) {
			return &domain.AccountBalances{
				Confirmed: map[string]decimal.Decimal{
					"SWTH": dec("100"),
					"NEO":  dec("3"),
					"GAS":  dec("50"), // not part of the pair
				},
				Confirming: map[string][]domain.ConfirmingEntry{
					"SWTH": {{Amount: dec("10")}, {Amount: dec("5")}},
				},
				Locked: map[string]decimal.Decimal{
					"NEO": dec("2"),
				},
			}, nil
		},
	}
	store := newMockStore(s)
	tracker := NewBalanceTracker(ex, store, zap.NewNop())
	tracker.SetPair("SWTHNEO")

	require.NoError(t, tracker.Update(context.Background(), s))

	// Free plus every confirming entry plus locked, per symbol.
	assert.Equal(t, "115", tracker.AssetQuantity().String())
	assert.Equal(t, "5", tracker.CounterQuantity().String())

	for _, b := range tracker.Current() {
		assert.NotEqual(t, "GAS", b.Symbol, "assets outside the pair are filtered out")
	}

	require.Len(t, store.balances, 1)
}

func TestPaperBalancesSeedFromStartingAmount(t *testing.T) {
	s := paperSettings()
	s.StartingAmount = dec("250")

	tracker := NewBalanceTracker(&mockExchange{}, newMockStore(s), zap.NewNop())
	tracker.SetPair("SWTHNEO")

	require.NoError(t, tracker.SetBalances(context.Background(), s, false))
	assert.Equal(t, "250", tracker.CounterQuantity().String())
	assert.True(t, tracker.AssetQuantity().IsZero())
}

func TestPaperBalancesFollowLastFill(t *testing.T) {
	s := paperSettings()
	tracker := NewBalanceTracker(&mockExchange{}, newMockStore(s), zap.NewNop())
	tracker.SetPair("SWTHNEO")

	tracker.RecordFill(domain.SideBuy, dec("12.5"))
	require.NoError(t, tracker.Update(context.Background(), s))
	assert.Equal(t, "12.5", tracker.AssetQuantity().String())
	assert.True(t, tracker.CounterQuantity().IsZero())

	tracker.RecordFill(domain.SideSell, dec("120"))
	require.NoError(t, tracker.Update(context.Background(), s))
	assert.True(t, tracker.AssetQuantity().IsZero())
	assert.Equal(t, "120", tracker.CounterQuantity().String())
}

func TestSnapshotNoneMode(t *testing.T) {
	s := paperSettings()
	s.TradingStatus = domain.StatusNone

	tracker := NewBalanceTracker(&mockExchange{}, newMockStore(s), zap.NewNop())
	tracker.SetPair("SWTHNEO")

	balances, err := tracker.Snapshot(context.Background(), s, decimal.Zero)
	require.NoError(t, err)
	assert.Nil(t, balances)
}

func TestSetPairSplits(t *testing.T) {
	tracker := NewBalanceTracker(&mockExchange{}, newMockStore(paperSettings()), zap.NewNop())

	tracker.SetPair("NEOUSDT")
	assert.Equal(t, "NEO", tracker.Asset())
	assert.Equal(t, "USDT", tracker.Counter())

	tracker.SetPair("SWTHBTC")
	assert.Equal(t, "SWTH", tracker.Asset())
	assert.Equal(t, "BTC", tracker.Counter())
}
