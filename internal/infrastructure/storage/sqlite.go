package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"switcheo-trader/internal/domain"
)

// SQLiteStore persists the bot settings, credentials and the append-only
// balance/transaction/signal logs.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bot_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			trading_pair TEXT NOT NULL DEFAULT '',
			exchange TEXT NOT NULL DEFAULT '',
			trading_strategy INTEGER NOT NULL DEFAULT 0,
			trading_status INTEGER NOT NULL DEFAULT 0,
			chart_interval INTEGER NOT NULL DEFAULT 0,
			buy_percent TEXT NOT NULL DEFAULT '0',
			sell_percent TEXT NOT NULL DEFAULT '0',
			stop_loss TEXT NOT NULL DEFAULT '0',
			stop_loss_check BOOLEAN NOT NULL DEFAULT 0,
			order_book_quantity TEXT NOT NULL DEFAULT '0',
			trade_percent TEXT NOT NULL DEFAULT '0',
			trading_fee TEXT NOT NULL DEFAULT '0',
			starting_amount TEXT NOT NULL DEFAULT '0',
			mooning_tanking_percent TEXT NOT NULL DEFAULT '0',
			mooning_tanking_time INTEGER NOT NULL DEFAULT 0,
			price_check INTEGER NOT NULL DEFAULT 0,
			trade_validation_check INTEGER NOT NULL DEFAULT 0,
			trader_reset_interval INTEGER NOT NULL DEFAULT 0,
			open_order_time_ms INTEGER NOT NULL DEFAULT 0,
			same_price_limit INTEGER NOT NULL DEFAULT 0,
			run_bot BOOLEAN NOT NULL DEFAULT 0,
			start_bot_automatically INTEGER,
			trading_competition BOOLEAN NOT NULL DEFAULT 0,
			trading_competition_end INTEGER NOT NULL DEFAULT 0,
			last_buy TEXT NOT NULL DEFAULT '0',
			last_sell TEXT NOT NULL DEFAULT '0',
			bot_password TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			wif TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS balance_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS balances (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES balance_snapshots(id),
			symbol TEXT NOT NULL,
			quantity TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_balances_snapshot ON balances(snapshot_id);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pair TEXT NOT NULL,
			trade_type TEXT NOT NULL,
			price TEXT NOT NULL,
			quantity TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pair TEXT NOT NULL,
			signal INTEGER NOT NULL,
			trade_type INTEGER NOT NULL,
			price TEXT NOT NULL,
			current_volume TEXT NOT NULL,
			last_buy TEXT NOT NULL,
			last_sell TEXT NOT NULL,
			transaction_date DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// Settings

func (s *SQLiteStore) SettingsExist(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bot_settings WHERE id = 1`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetSettings loads the settings row. On first run, when none exists yet,
// defaults are stored and returned; absence is never fatal.
func (s *SQLiteStore) GetSettings(ctx context.Context) (*domain.BotSettings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		trading_pair, exchange, trading_strategy, trading_status, chart_interval,
		buy_percent, sell_percent, stop_loss, stop_loss_check, order_book_quantity,
		trade_percent, trading_fee, starting_amount, mooning_tanking_percent,
		mooning_tanking_time, price_check, trade_validation_check, trader_reset_interval,
		open_order_time_ms, same_price_limit, run_bot, start_bot_automatically,
		trading_competition, trading_competition_end, last_buy, last_sell, bot_password
		FROM bot_settings WHERE id = 1`)

	var (
		settings  domain.BotSettings
		strategy  int
		status    int
		interval  int
		buyPct    string
		sellPct   string
		stopLoss  string
		obQty     string
		tradePct  string
		fee       string
		startAmt  string
		mtPct     string
		lastBuy   string
		lastSell  string
		startAuto sql.NullInt64
	)
	err := row.Scan(
		&settings.TradingPair, &settings.Exchange, &strategy, &status, &interval,
		&buyPct, &sellPct, &stopLoss, &settings.StopLossCheck, &obQty,
		&tradePct, &fee, &startAmt, &mtPct,
		&settings.MooningTankingTime, &settings.PriceCheck, &settings.TradeValidationCheck,
		&settings.TraderResetInterval, &settings.OpenOrderTimeMS, &settings.SamePriceLimit,
		&settings.RunBot, &startAuto, &settings.TradingCompetition,
		&settings.TradingCompetitionEndTimeStamp, &lastBuy, &lastSell, &settings.BotPassword)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := domain.DefaultSettings()
		if err := s.UpdateSettings(ctx, defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}

	settings.TradingStrategy = domain.Strategy(strategy)
	settings.TradingStatus = domain.TradeStatus(status)
	settings.ChartInterval = domain.Interval(interval)
	settings.BuyPercent = mustDec(buyPct)
	settings.SellPercent = mustDec(sellPct)
	settings.StopLoss = mustDec(stopLoss)
	settings.OrderBookQuantity = mustDec(obQty)
	settings.TradePercent = mustDec(tradePct)
	settings.TradingFee = mustDec(fee)
	settings.StartingAmount = mustDec(startAmt)
	settings.MooningTankingPercent = mustDec(mtPct)
	settings.LastBuy = mustDec(lastBuy)
	settings.LastSell = mustDec(lastSell)
	if startAuto.Valid {
		b := startAuto.Int64 != 0
		settings.StartBotAutomatically = &b
	}

	return &settings, nil
}

func (s *SQLiteStore) UpdateSettings(ctx context.Context, settings *domain.BotSettings) error {
	var startAuto any
	if settings.StartBotAutomatically != nil {
		if *settings.StartBotAutomatically {
			startAuto = 1
		} else {
			startAuto = 0
		}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO bot_settings (
		id, trading_pair, exchange, trading_strategy, trading_status, chart_interval,
		buy_percent, sell_percent, stop_loss, stop_loss_check, order_book_quantity,
		trade_percent, trading_fee, starting_amount, mooning_tanking_percent,
		mooning_tanking_time, price_check, trade_validation_check, trader_reset_interval,
		open_order_time_ms, same_price_limit, run_bot, start_bot_automatically,
		trading_competition, trading_competition_end, last_buy, last_sell, bot_password)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		trading_pair=excluded.trading_pair,
		exchange=excluded.exchange,
		trading_strategy=excluded.trading_strategy,
		trading_status=excluded.trading_status,
		chart_interval=excluded.chart_interval,
		buy_percent=excluded.buy_percent,
		sell_percent=excluded.sell_percent,
		stop_loss=excluded.stop_loss,
		stop_loss_check=excluded.stop_loss_check,
		order_book_quantity=excluded.order_book_quantity,
		trade_percent=excluded.trade_percent,
		trading_fee=excluded.trading_fee,
		starting_amount=excluded.starting_amount,
		mooning_tanking_percent=excluded.mooning_tanking_percent,
		mooning_tanking_time=excluded.mooning_tanking_time,
		price_check=excluded.price_check,
		trade_validation_check=excluded.trade_validation_check,
		trader_reset_interval=excluded.trader_reset_interval,
		open_order_time_ms=excluded.open_order_time_ms,
		same_price_limit=excluded.same_price_limit,
		run_bot=excluded.run_bot,
		start_bot_automatically=excluded.start_bot_automatically,
		trading_competition=excluded.trading_competition,
		trading_competition_end=excluded.trading_competition_end,
		last_buy=excluded.last_buy,
		last_sell=excluded.last_sell,
		bot_password=excluded.bot_password`,
		settings.TradingPair, settings.Exchange, int(settings.TradingStrategy),
		int(settings.TradingStatus), int(settings.ChartInterval),
		settings.BuyPercent.String(), settings.SellPercent.String(),
		settings.StopLoss.String(), settings.StopLossCheck,
		settings.OrderBookQuantity.String(), settings.TradePercent.String(),
		settings.TradingFee.String(), settings.StartingAmount.String(),
		settings.MooningTankingPercent.String(), settings.MooningTankingTime,
		settings.PriceCheck, settings.TradeValidationCheck, settings.TraderResetInterval,
		settings.OpenOrderTimeMS, settings.SamePriceLimit, settings.RunBot, startAuto,
		settings.TradingCompetition, settings.TradingCompetitionEndTimeStamp,
		settings.LastBuy.String(), settings.LastSell.String(), settings.BotPassword)
	return err
}

// Credentials

func (s *SQLiteStore) GetCredentials(ctx context.Context) (*domain.Credentials, error) {
	var wif string
	err := s.db.QueryRowContext(ctx, `SELECT wif FROM credentials WHERE id = 1`).Scan(&wif)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Credentials{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Credentials{WIF: wif}, nil
}

func (s *SQLiteStore) SetCredentials(ctx context.Context, creds *domain.Credentials) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO credentials (id, wif) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET wif=excluded.wif`, creds.WIF)
	return err
}

// Append-only logs

func (s *SQLiteStore) LogBalances(ctx context.Context, balances []domain.BotBalance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO balance_snapshots (created_at) VALUES (?)`, time.Now().UTC())
	if err != nil {
		return err
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, b := range balances {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO balances (snapshot_id, symbol, quantity, timestamp) VALUES (?, ?, ?, ?)`,
			snapshotID, b.Symbol, b.Quantity.String(), b.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LogTransaction(ctx context.Context, trade *domain.TradeInformation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (pair, trade_type, price, quantity, timestamp) VALUES (?, ?, ?, ?, ?)`,
		trade.Pair, trade.TradeType, trade.Price.String(), trade.Quantity.String(), trade.Timestamp)
	return err
}

func (s *SQLiteStore) LogSignal(ctx context.Context, signal *domain.TradeSignal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (pair, signal, trade_type, price, current_volume, last_buy, last_sell, transaction_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		signal.Pair, int(signal.Signal), int(signal.TradeType), signal.Price.String(),
		signal.CurrentVolume.String(), signal.LastBuy.String(), signal.LastSell.String(),
		signal.TransactionDate)
	return err
}

// GetBalances returns the logged snapshots oldest-first, one balance list
// per snapshot.
func (s *SQLiteStore) GetBalances(ctx context.Context) ([][]domain.BotBalance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id, symbol, quantity, timestamp FROM balances ORDER BY snapshot_id ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out      [][]domain.BotBalance
		lastSnap int64 = -1
	)
	for rows.Next() {
		var (
			snapID int64
			b      domain.BotBalance
			qty    string
		)
		if err := rows.Scan(&snapID, &b.Symbol, &qty, &b.Timestamp); err != nil {
			return nil, err
		}
		b.Quantity = mustDec(qty)
		if snapID != lastSnap {
			out = append(out, nil)
			lastSnap = snapID
		}
		out[len(out)-1] = append(out[len(out)-1], b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTransactions(ctx context.Context) ([]*domain.TradeInformation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pair, trade_type, price, quantity, timestamp FROM transactions ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TradeInformation
	for rows.Next() {
		var (
			t          domain.TradeInformation
			price, qty string
		)
		if err := rows.Scan(&t.Pair, &t.TradeType, &price, &qty, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Price = mustDec(price)
		t.Quantity = mustDec(qty)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSignals(ctx context.Context) ([]*domain.TradeSignal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pair, signal, trade_type, price, current_volume, last_buy, last_sell, transaction_date
		FROM signals ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TradeSignal
	for rows.Next() {
		var (
			sig                      domain.TradeSignal
			sigType, tradeType       int
			price, vol, lastB, lastS string
		)
		if err := rows.Scan(&sig.Pair, &sigType, &tradeType, &price, &vol, &lastB, &lastS, &sig.TransactionDate); err != nil {
			return nil, err
		}
		sig.Signal = domain.SignalType(sigType)
		sig.TradeType = domain.TradeType(tradeType)
		sig.Price = mustDec(price)
		sig.CurrentVolume = mustDec(vol)
		sig.LastBuy = mustDec(lastB)
		sig.LastSell = mustDec(lastS)
		out = append(out, &sig)
	}
	return out, rows.Err()
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
