package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"webreplay/internal/models"
	"webreplay/pkg/chrome"
)

// Options configures a replay run.
type Options struct {
	Browser      chrome.Options
	InputTimeout time.Duration
	// Linger keeps the browser open after the last event for inspection.
	Linger  time.Duration
	OnEvent EventFunc
}

// Replay launches a browser, opens the session's start URL, dispatches every
// event and releases the browser after the linger period.
func Replay(ctx context.Context, session models.Session, opts Options, log zerolog.Logger) (Result, error) {
	if _, err := session.StartURL(); err != nil {
		return Result{}, err
	}

	browser, err := chrome.Launch(ctx, opts.Browser, log)
	if err != nil {
		return Result{}, err
	}
	defer browser.Close()

	page := NewChromePage(browser.Context(), opts.InputTimeout)
	return ReplayOn(ctx, page, session, opts, log)
}

// ReplayOn runs the session against an already open page.
func ReplayOn(ctx context.Context, page Page, session models.Session, opts Options, log zerolog.Logger) (Result, error) {
	startURL, err := session.StartURL()
	if err != nil {
		return Result{}, err
	}
	if err := page.Navigate(ctx, startURL); err != nil {
		return Result{}, fmt.Errorf("open start url: %w", err)
	}
	log.Info().Str("url", startURL).Int("events", len(session)).Msg("🎬 Replaying session")

	d := NewDispatcher(page, log)
	d.OnEvent = opts.OnEvent
	result, err := d.Run(ctx, session)
	if err != nil {
		return result, err
	}

	log.Info().
		Int("replayed", result.Replayed).
		Int("input_failures", result.InputFailures).
		Msg("✅ Replay completed")

	if opts.Linger > 0 {
		log.Info().Dur("linger", opts.Linger).Msg("⏳ Keeping browser open")
		// an interrupted linger is not a failure
		_ = sleepContext(ctx, opts.Linger)
	}
	return result, nil
}
