package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

const (
	waitFor   = 2 * time.Second
	pollEvery = 5 * time.Millisecond
)

func engineSettings() *domain.BotSettings {
	s := domain.DefaultSettings()
	s.TradingPair = "SWTHNEO"
	s.TradingStatus = domain.StatusPaperTrading
	s.TradingStrategy = domain.StrategyPercentage
	s.StartingAmount = decimal.NewFromInt(100)
	s.MooningTankingTime = 0
	s.PriceCheck = 0
	s.TradeValidationCheck = 0
	return s
}

func newTestEngine(t *testing.T, ex domain.Exchange, store *mockStore) *TradeEngine {
	t.Helper()
	engine, err := NewTradeEngine(context.Background(), store, ex, zap.NewNop(), testConfig())
	require.NoError(t, err)
	return engine
}

func candleExchange(closePrice string) *mockExchange {
	return &mockExchange{
		getCandlesticks: func(ctx context.Context, pair string, interval domain.Interval, offset, count int) ([]domain.Candle, error) {
			return []domain.Candle{
				{Close: dec(closePrice), Open: dec(closePrice)},
				{Close: dec(closePrice), Open: dec(closePrice)},
			}, nil
		},
	}
}

func TestApplySettingsMergesImmediatelyWhenStopped(t *testing.T) {
	s := engineSettings()
	s.BuyPercent = decimal.NewFromInt(5)
	store := newMockStore(s)
	engine := newTestEngine(t, &mockExchange{}, store)

	incoming := &domain.BotSettings{SellPercent: decimal.NewFromInt(3)}
	require.NoError(t, engine.ApplySettings(context.Background(), incoming))

	merged := engine.Settings()
	assert.Equal(t, "3", merged.SellPercent.String())
	assert.Equal(t, "5", merged.BuyPercent.String(), "zero incoming buyPercent must not clobber")
	assert.Equal(t, "SWTHNEO", merged.TradingPair)

	persisted, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", persisted.SellPercent.String())
}

func TestValidatePassword(t *testing.T) {
	s := engineSettings()
	s.BotPassword = "hunter2"
	engine := newTestEngine(t, &mockExchange{}, newMockStore(s))

	assert.True(t, engine.ValidatePassword("hunter2"))
	assert.False(t, engine.ValidatePassword(""))
	assert.False(t, engine.ValidatePassword("wrong"))
}

func TestUpdateCredentialsRekeysGateway(t *testing.T) {
	s := engineSettings()
	store := newMockStore(s)
	ex := &rekeyableExchange{}
	engine, err := NewTradeEngine(context.Background(), store, ex, zap.NewNop(), testConfig())
	require.NoError(t, err)

	require.NoError(t, engine.UpdateCredentials(context.Background(), &domain.Credentials{WIF: "new-key"}))
	assert.Equal(t, "new-key", ex.wif)

	creds, err := store.GetCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-key", creds.WIF)
}

type rekeyableExchange struct {
	mockExchange
	wif string
}

func (r *rekeyableExchange) SetWIF(wif string) { r.wif = wif }

func TestPercentageCycleBuySignal(t *testing.T) {
	// Last sell at 10, buy percent 1: a close at or below 9.9 triggers a buy.
	s := engineSettings()
	s.LastSell = dec("10")
	s.BuyPercent = decimal.NewFromInt(1)

	ex := candleExchange("9.9")
	store := newMockStore(s)
	engine := newTestEngine(t, ex, store)

	engine.RunCycle(context.Background())

	assert.Equal(t, "9.9", engine.Settings().LastBuy.String())
	require.NotEmpty(t, store.transactions)
	assert.Equal(t, "BUY", store.transactions[0].TradeType)
}

func TestPercentageCycleHoldsAboveThreshold(t *testing.T) {
	s := engineSettings()
	s.LastSell = dec("10")
	s.BuyPercent = decimal.NewFromInt(1)

	ex := candleExchange("9.95")
	store := newMockStore(s)
	engine := newTestEngine(t, ex, store)

	engine.RunCycle(context.Background())

	assert.Empty(t, store.transactions, "price above the dip threshold must not trade")
	require.NotEmpty(t, store.signals, "the decision point is still logged")
	assert.Equal(t, domain.TradeBuy, store.signals[len(store.signals)-1].TradeType)
}

func TestPercentageCycleSellSignal(t *testing.T) {
	// Holding the asset after a buy at 10, sell percent 1: a close at or
	// above 10.1 triggers the sell.
	s := engineSettings()
	s.TradingPair = "SWTHUSDT"
	s.LastBuy = dec("10")
	s.SellPercent = decimal.NewFromInt(1)
	s.StartingAmount = decimal.Zero

	ex := candleExchange("10.1")
	store := newMockStore(s)
	engine := newTestEngine(t, ex, store)

	// Simulate the position left by an earlier buy.
	engine.tracker.RecordFill(domain.SideBuy, dec("20"))

	engine.RunCycle(context.Background())

	assert.Equal(t, "10.1", engine.Settings().LastSell.String())
	require.NotEmpty(t, store.transactions)
	assert.Equal(t, "SELL", store.transactions[len(store.transactions)-1].TradeType)
}

func TestTradingDirectionDustRules(t *testing.T) {
	tests := []struct {
		name     string
		pair     string
		balances map[string]decimal.Decimal
		want     domain.TradeType
	}{
		{"counter funds a buy", "SWTHUSDT",
			map[string]decimal.Decimal{"USDT": dec("50")}, domain.TradeBuy},
		{"dust fiat, asset funds a sell", "SWTHUSDT",
			map[string]decimal.Decimal{"USDT": dec("5"), "SWTH": dec("100")}, domain.TradeSell},
		{"dust on both sides", "SWTHUSDT",
			map[string]decimal.Decimal{"USDT": dec("5"), "SWTH": dec("0.4")}, domain.TradeNone},
		{"coin counter below dust", "SWTHBTC",
			map[string]decimal.Decimal{"BTC": dec("0.0001"), "SWTH": dec("100")}, domain.TradeSell},
		{"coin counter above dust", "SWTHBTC",
			map[string]decimal.Decimal{"BTC": dec("0.001")}, domain.TradeBuy},
		{"coin asset below dust", "BTCUSDT",
			map[string]decimal.Decimal{"USDT": dec("5"), "BTC": dec("0.0001")}, domain.TradeNone},
		{"coin asset still under minimum", "BTCUSDT",
			map[string]decimal.Decimal{"USDT": dec("5"), "BTC": dec("0.3")}, domain.TradeNone},
		{"coin asset funds a sell", "BTCUSDT",
			map[string]decimal.Decimal{"USDT": dec("5"), "BTC": dec("1")}, domain.TradeSell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := engineSettings()
			s.TradingPair = tt.pair
			s.TradingStatus = domain.StatusLiveTrading

			ex := &mockExchange{
				getBalances: func(ctx context.Context) (*domain.AccountBalances, error) {
					return &domain.AccountBalances{Confirmed: tt.balances}, nil
				},
			}
			engine := newTestEngine(t, ex, newMockStore(s))

			got := engine.tradingDirection(context.Background(), s)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartStop(t *testing.T) {
	s := engineSettings()
	s.PriceCheck = 10
	store := newMockStore(s)
	engine := newTestEngine(t, candleExchange("1"), store)

	require.True(t, engine.Start(domain.FiveM))
	assert.False(t, engine.Start(domain.FiveM), "second start is rejected while running")
	assert.True(t, engine.Running())
	assert.Equal(t, domain.FiveM, engine.Settings().ChartInterval)

	require.True(t, engine.Stop())
	<-engine.done
	assert.False(t, engine.Running())
	assert.False(t, engine.Stop(), "stopping a stopped engine is rejected")
}

type streamingExchange struct {
	mockExchange
	onPrice func(pair string, price decimal.Decimal)
}

func (s *streamingExchange) OnPriceUpdate(cb func(pair string, price decimal.Decimal)) {
	s.onPrice = cb
}

func TestStreamedPriceFeedsStopLossWatch(t *testing.T) {
	// Candles report 100, but the stream has pushed 97: the watch must act
	// on the pushed price and fire the 98 trigger.
	s := engineSettings()
	s.StopLossCheck = true
	s.StopLoss = decimal.NewFromInt(2)

	ex := &streamingExchange{mockExchange: *candleExchange("100")}
	store := newMockStore(s)
	engine := newTestEngine(t, ex, store)
	require.NotNil(t, ex.onPrice, "the engine subscribes to the price stream")

	armed := engine.Settings()
	_, err := engine.stops.Place(context.Background(), &armed, decimal.NewFromInt(100), decimal.NewFromInt(5))
	require.NoError(t, err)

	ex.onPrice("SWTHNEO", dec("97"))
	engine.RunCycle(context.Background())

	assert.Equal(t, "98", engine.Settings().LastSell.String())
	assert.Empty(t, engine.stops.Open())
}

func TestStreamedPriceScopedToActivePair(t *testing.T) {
	s := engineSettings()
	ex := &streamingExchange{mockExchange: *candleExchange("5")}
	engine := newTestEngine(t, ex, newMockStore(s))

	// A push for another pair is ignored; the candle close backs the watch.
	ex.onPrice("OTHERPAIR", dec("1"))
	price, ok := engine.stopLossPrice(context.Background(), s)
	require.True(t, ok)
	assert.Equal(t, "5", price.String())

	ex.onPrice("SWTHNEO", dec("4"))
	price, ok = engine.stopLossPrice(context.Background(), s)
	require.True(t, ok)
	assert.Equal(t, "4", price.String())
}

func scriptedCandles(seq [][]domain.Candle) *mockExchange {
	calls := 0
	return &mockExchange{
		getCandlesticks: func(ctx context.Context, pair string, interval domain.Interval, offset, count int) ([]domain.Candle, error) {
			i := calls
			if i >= len(seq) {
				i = len(seq) - 1
			}
			calls++
			return seq[i], nil
		},
	}
}

func TestAwaitBuyDipFollowsTheDrop(t *testing.T) {
	// Two successive red sticks below the starting price keep the watch in
	// the loop; the buy lands at the close where the drop stalls.
	ex := scriptedCandles([][]domain.Candle{
		{{Close: dec("9.5"), Open: dec("9.8")}, {Close: dec("9.9"), Open: dec("10")}},
		{{Close: dec("9.2"), Open: dec("9.4")}, {Close: dec("9.5"), Open: dec("9.8")}},
		{{Close: dec("9.3"), Open: dec("9.2")}, {Close: dec("9.2"), Open: dec("9.4")}},
	})
	s := engineSettings()
	engine := newTestEngine(t, ex, newMockStore(s))

	price := engine.awaitBuyDip(context.Background(), s, dec("10"))
	assert.Equal(t, "9.3", price.String())
}

func TestAwaitSellPeakFollowsTheClimb(t *testing.T) {
	ex := scriptedCandles([][]domain.Candle{
		{{Close: dec("10.5"), Open: dec("10.2")}, {Close: dec("10.1"), Open: dec("10")}},
		{{Close: dec("10.8"), Open: dec("10.6")}, {Close: dec("10.5"), Open: dec("10.2")}},
		{{Close: dec("10.7"), Open: dec("10.8")}, {Close: dec("10.8"), Open: dec("10.6")}},
	})
	s := engineSettings()
	engine := newTestEngine(t, ex, newMockStore(s))

	price := engine.awaitSellPeak(context.Background(), s, dec("10"))
	assert.Equal(t, "10.7", price.String())
}

func TestAwaitBuyDipFlatMarketKeepsStartingPrice(t *testing.T) {
	s := engineSettings()
	engine := newTestEngine(t, candleExchange("9.9"), newMockStore(s))

	price := engine.awaitBuyDip(context.Background(), s, dec("9.9"))
	assert.Equal(t, "9.9", price.String())
}

func TestApplySettingsDeferredWhileRunning(t *testing.T) {
	s := engineSettings()
	s.PriceCheck = 10
	store := newMockStore(s)
	engine := newTestEngine(t, candleExchange("1"), store)

	require.True(t, engine.Start(domain.OneM))
	defer func() {
		engine.Stop()
		<-engine.done
	}()

	incoming := &domain.BotSettings{SellPercent: decimal.NewFromInt(7)}
	require.NoError(t, engine.ApplySettings(context.Background(), incoming))

	// The merge lands at a cycle boundary, not instantly.
	assert.Eventually(t, func() bool {
		return engine.Settings().SellPercent.String() == "7"
	}, waitFor, pollEvery)
}
