package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BotSettings is the mutable bot configuration. The trade engine owns the
// active copy exclusively; it is replaced wholesale on update, never
// field-mutated concurrently with an in-flight trade.
type BotSettings struct {
	TradingPair       string          `json:"tradingPair"`
	Exchange          string          `json:"exchange"`
	TradingStrategy   Strategy        `json:"tradingStrategy"`
	TradingStatus     TradeStatus     `json:"tradingStatus"`
	ChartInterval     Interval        `json:"chartInterval"`
	BuyPercent        decimal.Decimal `json:"buyPercent"`
	SellPercent       decimal.Decimal `json:"sellPercent"`
	StopLoss          decimal.Decimal `json:"stopLoss"`
	StopLossCheck     bool            `json:"stopLossCheck"`
	OrderBookQuantity decimal.Decimal `json:"orderBookQuantity"`
	TradePercent      decimal.Decimal `json:"tradePercent"`
	TradingFee        decimal.Decimal `json:"tradingFee"`
	StartingAmount    decimal.Decimal `json:"startingAmount"`

	MooningTankingPercent decimal.Decimal `json:"mooningTankingPercent"`
	MooningTankingTime    int             `json:"mooningTankingTime"` // ms between candlestick checks

	PriceCheck           int `json:"priceCheck"`           // ms between trading cycles
	TradeValidationCheck int `json:"tradeValidationCheck"` // ms between fill polls
	TraderResetInterval  int `json:"traderResetInterval"`
	OpenOrderTimeMS      int `json:"openOrderTimeMS"`
	SamePriceLimit       int `json:"samePriceLimit"`

	RunBot                bool  `json:"runBot"`
	StartBotAutomatically *bool `json:"startBotAutomatically"`

	TradingCompetition             bool  `json:"tradingCompetition"`
	TradingCompetitionEndTimeStamp int64 `json:"tradingCompetitionEndTimeStamp"`

	LastBuy  decimal.Decimal `json:"lastBuy"`
	LastSell decimal.Decimal `json:"lastSell"`

	BotPassword string `json:"botPassword"`
}

// DefaultSettings are used on first run when no settings row exists yet.
func DefaultSettings() *BotSettings {
	return &BotSettings{
		TradingStrategy:      StrategyOrderBook,
		TradingStatus:        StatusPaperTrading,
		ChartInterval:        OneM,
		BuyPercent:           decimal.NewFromInt(1),
		SellPercent:          decimal.NewFromInt(1),
		StopLoss:             decimal.NewFromInt(2),
		OrderBookQuantity:    decimal.NewFromInt(100),
		TradePercent:         decimal.NewFromInt(100),
		StartingAmount:       decimal.NewFromInt(100),
		MooningTankingTime:   60000,
		PriceCheck:           5000,
		TradeValidationCheck: 5000,
	}
}

// mergePolicy controls when an incoming field value replaces the existing one.
type mergePolicy int

const (
	// overwriteIfSet replaces only when the incoming value is meaningful:
	// non-zero numerics, non-empty strings, non-default enums, non-nil
	// optional booleans.
	overwriteIfSet mergePolicy = iota
	// alwaysOverwrite replaces unconditionally, zero values included.
	alwaysOverwrite
	// neverOverwrite keeps the existing value regardless of input.
	neverOverwrite
)

type mergeRule struct {
	field  string
	policy mergePolicy
	isSet  func(in *BotSettings) bool
	apply  func(dst, in *BotSettings)
}

// mergeRules is the full per-field merge policy. Order and policies mirror
// the settings-update behavior the bot has always had; change with care.
var mergeRules = []mergeRule{
	{"buyPercent", overwriteIfSet,
		func(in *BotSettings) bool { return in.BuyPercent.IsPositive() },
		func(dst, in *BotSettings) { dst.BuyPercent = in.BuyPercent }},
	{"sellPercent", overwriteIfSet,
		func(in *BotSettings) bool { return in.SellPercent.IsPositive() },
		func(dst, in *BotSettings) { dst.SellPercent = in.SellPercent }},
	{"chartInterval", alwaysOverwrite, nil,
		func(dst, in *BotSettings) { dst.ChartInterval = in.ChartInterval }},
	{"exchange", overwriteIfSet,
		func(in *BotSettings) bool { return in.Exchange != "" },
		func(dst, in *BotSettings) { dst.Exchange = in.Exchange }},
	{"lastBuy", overwriteIfSet,
		func(in *BotSettings) bool { return in.LastBuy.IsPositive() },
		func(dst, in *BotSettings) { dst.LastBuy = in.LastBuy }},
	{"lastSell", overwriteIfSet,
		func(in *BotSettings) bool { return in.LastSell.IsPositive() },
		func(dst, in *BotSettings) { dst.LastSell = in.LastSell }},
	{"mooningTankingTime", overwriteIfSet,
		func(in *BotSettings) bool { return in.MooningTankingTime > 0 },
		func(dst, in *BotSettings) { dst.MooningTankingTime = in.MooningTankingTime }},
	{"mooningTankingPercent", alwaysOverwrite, nil,
		func(dst, in *BotSettings) { dst.MooningTankingPercent = in.MooningTankingPercent }},
	{"openOrderTimeMS", neverOverwrite, nil, nil},
	{"orderBookQuantity", overwriteIfSet,
		func(in *BotSettings) bool { return in.OrderBookQuantity.IsPositive() },
		func(dst, in *BotSettings) { dst.OrderBookQuantity = in.OrderBookQuantity }},
	{"priceCheck", overwriteIfSet,
		func(in *BotSettings) bool { return in.PriceCheck > 0 },
		func(dst, in *BotSettings) { dst.PriceCheck = in.PriceCheck }},
	{"runBot", alwaysOverwrite, nil,
		func(dst, in *BotSettings) { dst.RunBot = in.RunBot }},
	{"samePriceLimit", alwaysOverwrite, nil,
		func(dst, in *BotSettings) { dst.SamePriceLimit = in.SamePriceLimit }},
	{"startBotAutomatically", overwriteIfSet,
		func(in *BotSettings) bool { return in.StartBotAutomatically != nil },
		func(dst, in *BotSettings) { dst.StartBotAutomatically = in.StartBotAutomatically }},
	{"startingAmount", overwriteIfSet,
		func(in *BotSettings) bool { return in.StartingAmount.IsPositive() },
		func(dst, in *BotSettings) { dst.StartingAmount = in.StartingAmount }},
	{"stopLoss", overwriteIfSet,
		func(in *BotSettings) bool { return in.StopLoss.IsPositive() },
		func(dst, in *BotSettings) { dst.StopLoss = in.StopLoss }},
	{"stopLossCheck", alwaysOverwrite, nil,
		func(dst, in *BotSettings) { dst.StopLossCheck = in.StopLossCheck }},
	{"tradePercent", overwriteIfSet,
		func(in *BotSettings) bool { return in.TradePercent.IsPositive() },
		func(dst, in *BotSettings) { dst.TradePercent = in.TradePercent }},
	{"traderResetInterval", overwriteIfSet,
		func(in *BotSettings) bool { return in.TraderResetInterval > 0 },
		func(dst, in *BotSettings) { dst.TraderResetInterval = in.TraderResetInterval }},
	{"tradeValidationCheck", overwriteIfSet,
		func(in *BotSettings) bool { return in.TradeValidationCheck > 0 },
		func(dst, in *BotSettings) { dst.TradeValidationCheck = in.TradeValidationCheck }},
	{"tradingCompetition", alwaysOverwrite, nil,
		func(dst, in *BotSettings) { dst.TradingCompetition = in.TradingCompetition }},
	{"tradingCompetitionEndTimeStamp", alwaysOverwrite, nil,
		func(dst, in *BotSettings) { dst.TradingCompetitionEndTimeStamp = in.TradingCompetitionEndTimeStamp }},
	{"tradingFee", alwaysOverwrite, nil,
		func(dst, in *BotSettings) { dst.TradingFee = in.TradingFee }},
	{"tradingPair", overwriteIfSet,
		func(in *BotSettings) bool { return in.TradingPair != "" },
		func(dst, in *BotSettings) { dst.TradingPair = in.TradingPair }},
	{"tradingStatus", overwriteIfSet,
		func(in *BotSettings) bool { return in.TradingStatus != StatusNone },
		func(dst, in *BotSettings) { dst.TradingStatus = in.TradingStatus }},
	{"tradingStrategy", overwriteIfSet,
		func(in *BotSettings) bool { return in.TradingStrategy != StrategyNone },
		func(dst, in *BotSettings) { dst.TradingStrategy = in.TradingStrategy }},
	{"botPassword", overwriteIfSet,
		func(in *BotSettings) bool { return in.BotPassword != "" },
		func(dst, in *BotSettings) { dst.BotPassword = in.BotPassword }},
}

// MergeSettings applies the per-field merge policy: it starts from a full
// copy of existing and overwrites fields from incoming according to each
// field's rule. Neither input is mutated.
func MergeSettings(existing, incoming *BotSettings) *BotSettings {
	merged := *existing
	for _, rule := range mergeRules {
		switch rule.policy {
		case alwaysOverwrite:
			rule.apply(&merged, incoming)
		case overwriteIfSet:
			if rule.isSet(incoming) {
				rule.apply(&merged, incoming)
			}
		case neverOverwrite:
			// keep existing
		}
	}
	return &merged
}

// counterSymbols are the known counter assets, checked in order.
var counterSymbols = []string{"USDT", "USD", "BTC", "ETH", "NEO", "BNB"}

// SplitPair splits a trading pair like "NEOUSDT" into the traded asset and
// the counter asset. Unknown pairs return empty strings.
func SplitPair(pair string) (asset, counter string) {
	for _, c := range counterSymbols {
		if strings.HasSuffix(pair, c) && len(pair) > len(c) {
			return strings.TrimSuffix(pair, c), c
		}
	}
	return "", ""
}

// CompetitionActive reports whether competition mode applies right now.
// A competition with an end timestamp in the past no longer counts.
func (s *BotSettings) CompetitionActive(nowUnixMilli int64) bool {
	if !s.TradingCompetition {
		return false
	}
	if s.TradingCompetitionEndTimeStamp > 0 && nowUnixMilli > s.TradingCompetitionEndTimeStamp {
		return false
	}
	return true
}
