package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet identifies the exchange account.
type Wallet struct {
	Address       string
	HasPrivateKey bool
}

// Credentials holds the exchange access key.
type Credentials struct {
	WIF string
}

// Balance is the per-asset quantity derived for one trading cycle.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// ConfirmingEntry is one pending deposit/withdrawal reported by the exchange.
type ConfirmingEntry struct {
	Amount decimal.Decimal
}

// AccountBalances is the raw three-bucket balance report from the exchange.
type AccountBalances struct {
	Confirmed  map[string]decimal.Decimal
	Confirming map[string][]ConfirmingEntry
	Locked     map[string]decimal.Decimal
}

// BotBalance is an append-only timestamped balance snapshot entry.
type BotBalance struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

// TradeInformation is an append-only record of a completed trade.
type TradeInformation struct {
	Pair      string          `json:"pair"`
	TradeType string          `json:"tradeType"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

// TradeSignal is an append-only record of a decision point, logged even when
// no trade results.
type TradeSignal struct {
	Pair            string          `json:"pair"`
	Signal          SignalType      `json:"signal"`
	TradeType       TradeType       `json:"tradeType"`
	Price           decimal.Decimal `json:"price"`
	CurrentVolume   decimal.Decimal `json:"currentVolume"`
	LastBuy         decimal.Decimal `json:"lastBuy"`
	LastSell        decimal.Decimal `json:"lastSell"`
	TransactionDate time.Time       `json:"transactionDate"`
}

// OpenStopLoss is the single protective order tracked per pair.
type OpenStopLoss struct {
	Pair     string          `json:"pair"`
	OrderID  string          `json:"orderId"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Order is the ephemeral remote order handle.
type Order struct {
	ID        string
	Pair      string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Filled    decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// OrderBookEntry is one price level; Amount is denominated in the counter
// asset the maker wants.
type OrderBookEntry struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBook holds both sides best-first.
type OrderBook struct {
	Pair string
	Bids []OrderBookEntry
	Asks []OrderBookEntry
}

// OrderBookDetail is the result of a support/resistance scan.
type OrderBookDetail struct {
	Price     decimal.Decimal
	Precision int
	Position  int
}

// Candle is one candlestick, as returned newest-first by the exchange.
type Candle struct {
	Time   int64
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// TradeParams describes an order to place.
type TradeParams struct {
	Pair     string
	Side     Side
	Type     string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	UseSWTH  bool
}
