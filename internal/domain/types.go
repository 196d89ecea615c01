package domain

// Side is the order side on the exchange wire format.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeType classifies a completed or considered trade.
type TradeType int

const (
	TradeNone TradeType = iota
	TradeBuy
	TradeSell
	TradeStopLoss
	TradeCancel
	TradeVolumeBuy
	TradeVolumeSell
)

var tradeTypeLabels = map[TradeType]string{
	TradeNone:       "NONE",
	TradeBuy:        "BUY",
	TradeSell:       "SELL",
	TradeStopLoss:   "STOPLOSS",
	TradeCancel:     "CANCELTRADE",
	TradeVolumeBuy:  "VOLUMEBUY",
	TradeVolumeSell: "VOLUMESELL",
}

func (t TradeType) String() string {
	if s, ok := tradeTypeLabels[t]; ok {
		return s
	}
	return "NONE"
}

// Strategy selects the signal source used by the engine.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyOrderBook
	StrategyPercentage
	StrategyVolume
)

var strategyLabels = map[Strategy]string{
	StrategyNone:       "None",
	StrategyOrderBook:  "OrderBook",
	StrategyPercentage: "Percentage",
	StrategyVolume:     "Volume",
}

func (s Strategy) String() string {
	if l, ok := strategyLabels[s]; ok {
		return l
	}
	return "None"
}

// TradeStatus is the trading mode of the bot.
type TradeStatus int

const (
	StatusNone TradeStatus = iota
	StatusLiveTrading
	StatusPaperTrading
)

var tradeStatusLabels = map[TradeStatus]string{
	StatusNone:         "None",
	StatusLiveTrading:  "LiveTrading",
	StatusPaperTrading: "PaperTrading",
}

func (s TradeStatus) String() string {
	if l, ok := tradeStatusLabels[s]; ok {
		return l
	}
	return "None"
}

// SignalType records what produced a trade signal.
type SignalType int

const (
	SignalNone SignalType = iota
	SignalPercent
	SignalVolume
	SignalOrderBook
)

var signalTypeLabels = map[SignalType]string{
	SignalNone:      "None",
	SignalPercent:   "Percent",
	SignalVolume:    "Volume",
	SignalOrderBook: "OrderBook",
}

func (s SignalType) String() string {
	if l, ok := signalTypeLabels[s]; ok {
		return l
	}
	return "None"
}

// SignalForStrategy maps a trading strategy to the signal type it emits.
func SignalForStrategy(s Strategy) SignalType {
	switch s {
	case StrategyOrderBook:
		return SignalOrderBook
	case StrategyPercentage:
		return SignalPercent
	case StrategyVolume:
		return SignalVolume
	default:
		return SignalNone
	}
}

// Interval is a candlestick interval supported by the exchange.
type Interval int

const (
	OneM Interval = iota
	FiveM
	ThirtyM
	OneH
	SixH
	OneD
)

var intervalLabels = map[Interval]string{
	OneM:    "1m",
	FiveM:   "5m",
	ThirtyM: "30m",
	OneH:    "1h",
	SixH:    "6h",
	OneD:    "24h",
}

var intervalMinutes = map[Interval]int{
	OneM:    1,
	FiveM:   5,
	ThirtyM: 30,
	OneH:    60,
	SixH:    360,
	OneD:    1440,
}

func (i Interval) String() string {
	if l, ok := intervalLabels[i]; ok {
		return l
	}
	return "1m"
}

// Minutes returns the interval length in minutes as the exchange expects it.
func (i Interval) Minutes() int {
	if m, ok := intervalMinutes[i]; ok {
		return m
	}
	return 1
}

// ParseInterval maps a label like "5m" back to an Interval, defaulting to 1m.
func ParseInterval(label string) Interval {
	for iv, l := range intervalLabels {
		if l == label {
			return iv
		}
	}
	return OneM
}

// Order status values on the exchange wire format.
const (
	OrderStatusOpen      = "open"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)
