package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Armin-kho/mp3-editor-bot/internal/bot"
	"github.com/Armin-kho/mp3-editor-bot/internal/config"
	"github.com/Armin-kho/mp3-editor-bot/internal/db"
	"github.com/Armin-kho/mp3-editor-bot/internal/logging"
	"github.com/Armin-kho/mp3-editor-bot/internal/media"
)

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.json")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "mp3-editor-bot: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) (err error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if err := os.MkdirAll(cfg.TmpDir, 0o750); err != nil {
		return fmt.Errorf("tmp dir: %w", err)
	}

	store, err := db.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	tg, err := bot.NewTelegram(cfg.BotToken, cfg.Debug, log.Named("telegram"))
	if err != nil {
		return err
	}
	log.Info("bot authorized",
		zap.String("username", tg.Username()),
		zap.Int("admins", len(cfg.Admins)),
		zap.Strings("channels", cfg.Channels),
		zap.String("tmp_dir", cfg.TmpDir))

	app := bot.New(bot.Deps{
		Config:    cfg,
		Store:     store,
		Transport: tg,
		Encoder:   media.NewEncoder(cfg.FFmpegPath, cfg.Bitrate),
		Tagger:    media.NewTagger(),
		Log:       log.Named("bot"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = app.Run(ctx, tg.Updates(ctx))
	log.Info("shutting down")
	return err
}
