package domain

import "context"

// Exchange defines the interface for interacting with the exchange gateway.
// Transient failures surface as errors; callers own the retry policy.
type Exchange interface {
	GetWallet(ctx context.Context) (*Wallet, error)
	GetBalances(ctx context.Context) (*AccountBalances, error)
	GetOrderBook(ctx context.Context, pair string) (*OrderBook, error)
	GetCandlesticks(ctx context.Context, pair string, interval Interval, offset, count int) ([]Candle, error)

	PlaceOrder(ctx context.Context, params *TradeParams) (*Order, error)
	CancelOrder(ctx context.Context, id string) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOpenOrders(ctx context.Context) ([]*Order, error)
	GetOrders(ctx context.Context, pair string) ([]*Order, error)
}

// SettingsRepository defines storage operations for bot settings, credentials
// and the append-only trade/signal/balance logs. Readbacks are oldest-first.
type SettingsRepository interface {
	SettingsExist(ctx context.Context) (bool, error)
	GetSettings(ctx context.Context) (*BotSettings, error)
	UpdateSettings(ctx context.Context, settings *BotSettings) error

	GetCredentials(ctx context.Context) (*Credentials, error)
	SetCredentials(ctx context.Context, creds *Credentials) error

	LogBalances(ctx context.Context, balances []BotBalance) error
	LogTransaction(ctx context.Context, trade *TradeInformation) error
	LogSignal(ctx context.Context, signal *TradeSignal) error

	GetBalances(ctx context.Context) ([][]BotBalance, error)
	GetTransactions(ctx context.Context) ([]*TradeInformation, error)
	GetSignals(ctx context.Context) ([]*TradeSignal, error)
}
