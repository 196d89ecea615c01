package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"switcheo-trader/internal/infrastructure/exchange"
	"switcheo-trader/internal/infrastructure/logger"
	"switcheo-trader/internal/infrastructure/storage"
	"switcheo-trader/internal/usecase"
	"switcheo-trader/internal/web"
)

type Config struct {
	Exchange struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"exchange"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// Secrets come from the environment; .env is optional.
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "bot.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()

	// The key persisted in the store wins over the environment.
	wif := os.Getenv("SWITCHEO_WIF")
	if creds, err := store.GetCredentials(ctx); err == nil && creds.WIF != "" {
		wif = creds.WIF
	}

	gateway := exchange.NewSwitcheoGateway(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, wif, log)

	engine, err := usecase.NewTradeEngine(ctx, store, gateway, log, usecase.DefaultEngineConfig())
	if err != nil {
		log.Fatal("Failed to init trade engine", zap.Error(err))
	}

	settings := engine.Settings()

	// The engine subscribed to the price stream; open it for the active pair.
	if settings.TradingPair != "" {
		if err := gateway.ConnectWS([]string{settings.TradingPair}); err != nil {
			log.Warn("ticker stream unavailable", zap.Error(err))
		}
	}

	if settings.StartBotAutomatically != nil && *settings.StartBotAutomatically {
		engine.Start(settings.ChartInterval)
	}

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, engine, store, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	engine.Stop()
	server.Shutdown(context.Background())
}
