package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"webreplay/internal/config"
	"webreplay/internal/models"
	"webreplay/internal/recorder"
	"webreplay/pkg/chrome"
	"webreplay/pkg/logger"
)

func main() {
	flags := config.NewFlagSet("capture")
	flags.Duration("duration", 100*time.Second, "how long to record")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: capture [flags] <start_url> <output_file>\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])
	if flags.NArg() != 2 {
		flags.Usage()
		os.Exit(2)
	}
	startURL, output := flags.Arg(0), flags.Arg(1)

	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Level(cfg.LogLevel), true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, startURL, output, log); err != nil {
		log.Error().Err(err).Msg("❌ Capture failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, startURL, output string, log zerolog.Logger) error {
	session, err := recorder.Capture(ctx, startURL, recorder.Options{
		Browser: chrome.Options{
			Path:     cfg.Chrome.Path,
			Headless: cfg.Chrome.HeadlessMode,
			Device:   cfg.Chrome.Device,
		},
		Duration: cfg.Capture.Duration,
	}, log)
	if err != nil && !(errors.Is(err, context.Canceled) && len(session) > 0) {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer f.Close()

	if err := models.Encode(f, session); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	log.Info().Str("file", output).Int("events", len(session)).Msg("💾 Session saved")
	fmt.Printf("Recorded %d events to %s\n", len(session), output)
	return nil
}
