package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roombook/internal/app"
	"roombook/internal/bot"
	"roombook/internal/config"
	"roombook/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.OperatorChats) == 0 {
		return errors.New("telegram.bot_token and telegram.operator_chats are required")
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	logger := logging.Component(baseLogger, "bot-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, baseLogger)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Telegram == nil {
		return errors.New("telegram bot unavailable")
	}

	loc := time.UTC
	if tz := cfg.Pricing.DefaultTimezone; tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return fmt.Errorf("load timezone %q: %w", tz, err)
		}
	}

	// The API process owns the reconcile worker and scheduled jobs.
	console := bot.New(bot.Wrap(a.Telegram), a.Service, a.Report, cfg.Telegram.OperatorChats, loc, logging.Component(baseLogger, "bot"))
	logger.Info().Int("operators", len(cfg.Telegram.OperatorChats)).Msg("Operator console starting")
	console.Start(ctx)
	logger.Info().Msg("Operator console stopped")
	return nil
}
