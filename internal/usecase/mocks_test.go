package usecase

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"switcheo-trader/internal/domain"
)

// mockExchange implements domain.Exchange with per-method function fields so
// each test only stubs what it touches.
type mockExchange struct {
	getWallet       func(ctx context.Context) (*domain.Wallet, error)
	getBalances     func(ctx context.Context) (*domain.AccountBalances, error)
	getOrderBook    func(ctx context.Context, pair string) (*domain.OrderBook, error)
	getCandlesticks func(ctx context.Context, pair string, interval domain.Interval, offset, count int) ([]domain.Candle, error)
	placeOrder      func(ctx context.Context, params *domain.TradeParams) (*domain.Order, error)
	cancelOrder     func(ctx context.Context, id string) (*domain.Order, error)
	getOrder        func(ctx context.Context, id string) (*domain.Order, error)
	getOpenOrders   func(ctx context.Context) ([]*domain.Order, error)
	getOrders       func(ctx context.Context, pair string) ([]*domain.Order, error)
}

func (m *mockExchange) GetWallet(ctx context.Context) (*domain.Wallet, error) {
	if m.getWallet == nil {
		return &domain.Wallet{Address: "test-address"}, nil
	}
	return m.getWallet(ctx)
}

func (m *mockExchange) GetBalances(ctx context.Context) (*domain.AccountBalances, error) {
	if m.getBalances == nil {
		return &domain.AccountBalances{}, nil
	}
	return m.getBalances(ctx)
}

func (m *mockExchange) GetOrderBook(ctx context.Context, pair string) (*domain.OrderBook, error) {
	if m.getOrderBook == nil {
		return &domain.OrderBook{Pair: pair}, nil
	}
	return m.getOrderBook(ctx, pair)
}

func (m *mockExchange) GetCandlesticks(ctx context.Context, pair string, interval domain.Interval, offset, count int) ([]domain.Candle, error) {
	if m.getCandlesticks == nil {
		return nil, nil
	}
	return m.getCandlesticks(ctx, pair, interval, offset, count)
}

func (m *mockExchange) PlaceOrder(ctx context.Context, params *domain.TradeParams) (*domain.Order, error) {
	if m.placeOrder == nil {
		return nil, nil
	}
	return m.placeOrder(ctx, params)
}

func (m *mockExchange) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	if m.cancelOrder == nil {
		return &domain.Order{ID: id, Status: domain.OrderStatusCancelled}, nil
	}
	return m.cancelOrder(ctx, id)
}

func (m *mockExchange) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if m.getOrder == nil {
		return nil, nil
	}
	return m.getOrder(ctx, id)
}

func (m *mockExchange) GetOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	if m.getOpenOrders == nil {
		return nil, nil
	}
	return m.getOpenOrders(ctx)
}

func (m *mockExchange) GetOrders(ctx context.Context, pair string) ([]*domain.Order, error) {
	if m.getOrders == nil {
		return nil, nil
	}
	return m.getOrders(ctx, pair)
}

// mockStore is an in-memory domain.SettingsRepository.
type mockStore struct {
	mu           sync.Mutex
	settings     *domain.BotSettings
	creds        *domain.Credentials
	balances     [][]domain.BotBalance
	transactions []*domain.TradeInformation
	signals      []*domain.TradeSignal
}

func newMockStore(settings *domain.BotSettings) *mockStore {
	return &mockStore{settings: settings, creds: &domain.Credentials{}}
}

func (m *mockStore) SettingsExist(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings != nil, nil
}

func (m *mockStore) GetSettings(ctx context.Context) (*domain.BotSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		m.settings = domain.DefaultSettings()
	}
	out := *m.settings
	return &out, nil
}

func (m *mockStore) UpdateSettings(ctx context.Context, settings *domain.BotSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *settings
	m.settings = &stored
	return nil
}

func (m *mockStore) GetCredentials(ctx context.Context) (*domain.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *mockStore) SetCredentials(ctx context.Context, creds *domain.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	return nil
}

func (m *mockStore) LogBalances(ctx context.Context, balances []domain.BotBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]domain.BotBalance, len(balances))
	copy(snapshot, balances)
	m.balances = append(m.balances, snapshot)
	return nil
}

func (m *mockStore) LogTransaction(ctx context.Context, trade *domain.TradeInformation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, trade)
	return nil
}

func (m *mockStore) LogSignal(ctx context.Context, signal *domain.TradeSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, signal)
	return nil
}

func (m *mockStore) GetBalances(ctx context.Context) ([][]domain.BotBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances, nil
}

func (m *mockStore) GetTransactions(ctx context.Context) ([]*domain.TradeInformation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactions, nil
}

func (m *mockStore) GetSignals(ctx context.Context) ([]*domain.TradeSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals, nil
}

// testConfig is DefaultEngineConfig with all delays removed.
func testConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.BookFetchDelay = 0
	return cfg
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
