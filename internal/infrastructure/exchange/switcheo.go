package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"switcheo-trader/internal/domain"
)

const (
	SwitcheoBaseURL = "https://api.switcheo.network"
	SwitcheoWSURL   = "wss://ws.switcheo.io"

	defaultContractHash = "a195c1549e7da61b8da315765a790ac7e7633b82"
)

// SwitcheoGateway talks to the Switcheo DEX REST API and streams last trade
// prices over websocket.
type SwitcheoGateway struct {
	baseURL      string
	wsURL        string
	contractHash string
	client       *http.Client
	logger       *zap.Logger

	mu        sync.Mutex
	wif       string
	wsConn    *websocket.Conn
	callbacks []func(pair string, price decimal.Decimal)
}

func NewSwitcheoGateway(baseURL, wsURL, wif string, logger *zap.Logger) *SwitcheoGateway {
	if baseURL == "" {
		baseURL = SwitcheoBaseURL
	}
	if wsURL == "" {
		wsURL = SwitcheoWSURL
	}
	return &SwitcheoGateway{
		baseURL:      baseURL,
		wsURL:        wsURL,
		contractHash: defaultContractHash,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		wif:          wif,
	}
}

// SetWIF swaps the signing key at runtime.
func (g *SwitcheoGateway) SetWIF(wif string) {
	g.mu.Lock()
	g.wif = wif
	g.mu.Unlock()
}

func (g *SwitcheoGateway) currentWIF() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wif
}

// --- REST plumbing ---

func (g *SwitcheoGateway) sendRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("switcheo api error: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("switcheo api error: status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// --- Account ---

func (g *SwitcheoGateway) GetWallet(ctx context.Context) (*domain.Wallet, error) {
	resp, err := g.sendRequest(ctx, http.MethodGet, "/v2/exchange/wallet?wif="+url.QueryEscape(g.currentWIF()), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	return &domain.Wallet{
		Address:       result.Address,
		HasPrivateKey: g.currentWIF() != "",
	}, nil
}

type confirmingEvent struct {
	AssetID string `json:"asset_id"`
	Amount  string `json:"amount"`
}

func (g *SwitcheoGateway) GetBalances(ctx context.Context) (*domain.AccountBalances, error) {
	wallet, err := g.GetWallet(ctx)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v2/balances?addresses=%s&contract_hashes=%s",
		url.QueryEscape(wallet.Address), g.contractHash)
	resp, err := g.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Confirmed  map[string]string            `json:"confirmed"`
		Confirming map[string][]confirmingEvent `json:"confirming"`
		Locked     map[string]string            `json:"locked"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	out := &domain.AccountBalances{
		Confirmed:  make(map[string]decimal.Decimal, len(result.Confirmed)),
		Confirming: make(map[string][]domain.ConfirmingEntry, len(result.Confirming)),
		Locked:     make(map[string]decimal.Decimal, len(result.Locked)),
	}
	for asset, qty := range result.Confirmed {
		out.Confirmed[asset] = parseDec(qty)
	}
	for asset, events := range result.Confirming {
		entries := make([]domain.ConfirmingEntry, 0, len(events))
		for _, e := range events {
			entries = append(entries, domain.ConfirmingEntry{Amount: parseDec(e.Amount)})
		}
		out.Confirming[asset] = entries
	}
	for asset, qty := range result.Locked {
		out.Locked[asset] = parseDec(qty)
	}

	return out, nil
}

// --- Market data ---

func (g *SwitcheoGateway) GetOrderBook(ctx context.Context, pair string) (*domain.OrderBook, error) {
	resp, err := g.sendRequest(ctx, http.MethodGet, "/v2/offers/book?pair="+url.QueryEscape(pair), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Asks []struct {
			Price    string `json:"price"`
			Quantity string `json:"quantity"`
		} `json:"asks"`
		Bids []struct {
			Price    string `json:"price"`
			Quantity string `json:"quantity"`
		} `json:"bids"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	book := &domain.OrderBook{
		Pair: pair,
		Bids: make([]domain.OrderBookEntry, 0, len(result.Bids)),
		Asks: make([]domain.OrderBookEntry, 0, len(result.Asks)),
	}
	for _, bid := range result.Bids {
		book.Bids = append(book.Bids, domain.OrderBookEntry{
			Price:  parseDec(bid.Price),
			Amount: parseDec(bid.Quantity),
		})
	}
	for _, ask := range result.Asks {
		book.Asks = append(book.Asks, domain.OrderBookEntry{
			Price:  parseDec(ask.Price),
			Amount: parseDec(ask.Quantity),
		})
	}

	return book, nil
}

// GetCandlesticks returns candles newest-first. offset shifts the window back
// by whole candles; count bounds the window size.
func (g *SwitcheoGateway) GetCandlesticks(ctx context.Context, pair string, interval domain.Interval, offset, count int) ([]domain.Candle, error) {
	now := time.Now().UTC().Unix()
	step := int64(interval.Minutes()) * 60
	end := now - int64(offset)*step
	start := end - int64(count)*step

	path := fmt.Sprintf("/v2/tickers/candlesticks?pair=%s&interval=%d&start_time=%d&end_time=%d",
		url.QueryEscape(pair), interval.Minutes(), start, end)
	resp, err := g.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result []struct {
		Time   string `json:"time"`
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(result))
	for _, raw := range result {
		ts, _ := strconv.ParseInt(raw.Time, 10, 64)
		candles = append(candles, domain.Candle{
			Time:   ts,
			Open:   parseDec(raw.Open),
			High:   parseDec(raw.High),
			Low:    parseDec(raw.Low),
			Close:  parseDec(raw.Close),
			Volume: parseDec(raw.Volume),
		})
	}

	// The API replies oldest-first; callers expect newest-first.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

// --- Orders ---

type orderResponse struct {
	ID        string    `json:"id"`
	Pair      string    `json:"pair"`
	Side      string    `json:"side"`
	Price     string    `json:"price"`
	Quantity  string    `json:"quantity"`
	Filled    string    `json:"want_amount_filled"`
	Status    string    `json:"order_status"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *orderResponse) toDomain() *domain.Order {
	return &domain.Order{
		ID:        r.ID,
		Pair:      r.Pair,
		Side:      domain.Side(r.Side),
		Price:     parseDec(r.Price),
		Quantity:  parseDec(r.Quantity),
		Filled:    parseDec(r.Filled),
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

func (g *SwitcheoGateway) PlaceOrder(ctx context.Context, params *domain.TradeParams) (*domain.Order, error) {
	payload := map[string]any{
		"wif":               g.currentWIF(),
		"contract_hash":     g.contractHash,
		"pair":              params.Pair,
		"side":              string(params.Side),
		"price":             params.Price.String(),
		"quantity":          params.Quantity.String(),
		"use_native_tokens": params.UseSWTH,
		"order_type":        "limit",
	}

	resp, err := g.sendRequest(ctx, http.MethodPost, "/v2/orders", payload)
	if err != nil {
		return nil, err
	}

	var result orderResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

func (g *SwitcheoGateway) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	payload := map[string]any{
		"wif":      g.currentWIF(),
		"order_id": id,
	}

	resp, err := g.sendRequest(ctx, http.MethodPost, "/v2/orders/cancel", payload)
	if err != nil {
		return nil, err
	}

	var result orderResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

func (g *SwitcheoGateway) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	resp, err := g.sendRequest(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var result orderResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

func (g *SwitcheoGateway) GetOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	return g.listOrders(ctx, "", "open")
}

func (g *SwitcheoGateway) GetOrders(ctx context.Context, pair string) ([]*domain.Order, error) {
	return g.listOrders(ctx, pair, "")
}

func (g *SwitcheoGateway) listOrders(ctx context.Context, pair, status string) ([]*domain.Order, error) {
	wallet, err := g.GetWallet(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("address", wallet.Address)
	query.Set("contract_hash", g.contractHash)
	if pair != "" {
		query.Set("pair", pair)
	}
	if status != "" {
		query.Set("order_status", status)
	}

	resp, err := g.sendRequest(ctx, http.MethodGet, "/v2/orders?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result []orderResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(result))
	for i := range result {
		orders = append(orders, result[i].toDomain())
	}
	return orders, nil
}

// --- WebSocket ---

// OnPriceUpdate registers a callback for last trade price pushes.
func (g *SwitcheoGateway) OnPriceUpdate(callback func(pair string, price decimal.Decimal)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks = append(g.callbacks, callback)
}

// ConnectWS opens the stream and subscribes to trade events for the given
// pairs. Reconnects are the caller's responsibility.
func (g *SwitcheoGateway) ConnectWS(pairs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.wsConn == nil {
		c, _, err := websocket.DefaultDialer.Dial(g.wsURL, nil)
		if err != nil {
			return err
		}
		g.wsConn = c
		go g.readLoop(c)
	}

	for _, pair := range pairs {
		sub := map[string]any{
			"op":            "subscribe",
			"channel":       "trades",
			"contract_hash": g.contractHash,
			"pair":          pair,
		}
		if err := g.wsConn.WriteJSON(sub); err != nil {
			return err
		}
	}
	return nil
}

func (g *SwitcheoGateway) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		g.mu.Lock()
		if g.wsConn == conn {
			g.wsConn = nil
		}
		g.mu.Unlock()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			g.logger.Warn("websocket read failed", zap.Error(err))
			return
		}

		var event struct {
			Channel string `json:"channel"`
			Pair    string `json:"pair"`
			Data    []struct {
				Price string `json:"price"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			g.logger.Warn("websocket message unmarshal failed", zap.Error(err))
			continue
		}
		if event.Channel != "trades" || len(event.Data) == 0 {
			continue
		}

		price := parseDec(event.Data[len(event.Data)-1].Price)

		g.mu.Lock()
		callbacks := make([]func(string, decimal.Decimal), len(g.callbacks))
		copy(callbacks, g.callbacks)
		g.mu.Unlock()

		for _, cb := range callbacks {
			cb(event.Pair, price)
		}
	}
}
