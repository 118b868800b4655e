package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"brokerdesk/internal/api"
	"brokerdesk/internal/broker"
	"brokerdesk/internal/config"
	"brokerdesk/internal/util"
)

func main() {
	// .env is optional; real environment variables win.
	envErr := godotenv.Load()

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Logs go to stderr: stdout carries the protocol on the stdio transport.
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	util.SetDefault(logger)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("reading .env", "error", envErr)
	}

	var b broker.Broker
	switch cfg.Broker {
	case config.BrokerSimulator:
		b = broker.NewSimulatorBroker()
	default:
		b = broker.NewAlpacaBroker(broker.AlpacaOptions{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			BaseURL:         cfg.Alpaca.BaseURL,
			DataURL:         cfg.Alpaca.DataURL,
			Feed:            cfg.Alpaca.Feed,
			Timeout:         cfg.Alpaca.Timeout,
			RateLimitPerMin: cfg.Alpaca.RateLimitPerMin,
			ReadAttempts:    cfg.Alpaca.ReadAttempts,
			ReadRetryDelay:  cfg.Alpaca.ReadRetryDelay,
		}, logger)
	}

	srv := api.NewServer(cfg, b, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("brokerdesk-server starting",
		"version", api.Version, "transport", cfg.Server.Transport, "broker", b.Name())
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("brokerdesk-server stopped")
}
