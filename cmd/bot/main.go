// Package main is the entry point of the economy Telegram bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"guild-economy/internal/bot"
	"guild-economy/internal/config"
	"guild-economy/internal/economy"
	"guild-economy/internal/events"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)

	log.Info().
		Str("storage", cfg.Storage.Type).
		Msg("Configuration loaded successfully")

	eco, err := economy.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create economy")
	}

	eco.Bus().On(events.Ready, func(payload any) {
		if e, ok := payload.(events.LifecycleEvent); ok {
			log.Info().Str("engine", e.Engine).Msg("Economy is ready")
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start-up retries are bounded by error_handler; running out of them
	// is fatal.
	if err := eco.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start economy")
	}

	telegramBot, err := bot.New(cfg, eco)
	if err != nil {
		_ = eco.Destroy()
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	go telegramBot.Start()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	telegramBot.Stop()
	if err := eco.Destroy(); err != nil {
		log.Error().Err(err).Msg("Failed to destroy economy")
	}
	log.Info().Msg("Bot stopped gracefully")
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
