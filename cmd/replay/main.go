package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"webreplay/internal/config"
	"webreplay/internal/executor"
	"webreplay/internal/models"
	"webreplay/pkg/chrome"
	"webreplay/pkg/logger"
)

func main() {
	flags := config.NewFlagSet("replay")
	flags.Duration("linger", 10*time.Second, "keep the browser open after the last event")
	flags.Duration("input-timeout", 5*time.Second, "how long an input event waits for its element")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: replay [flags] <session_file>\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Level(cfg.LogLevel), true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags.Arg(0), log); err != nil {
		log.Error().Err(err).Msg("❌ Replay failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path string, log zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	session, err := models.Decode(f)
	f.Close()
	if err != nil {
		return err
	}

	_, err = executor.Replay(ctx, session, executor.Options{
		Browser: chrome.Options{
			Path:     cfg.Chrome.Path,
			Headless: cfg.Chrome.HeadlessMode,
			Device:   cfg.Chrome.Device,
		},
		InputTimeout: cfg.Replay.InputTimeout,
		Linger:       cfg.Replay.Linger,
		OnEvent: func(index int, ev models.Event, delay time.Duration) {
			fmt.Printf("Replayed %s after %dms\n", ev.Type, delay.Milliseconds())
		},
	}, log)
	return err
}
