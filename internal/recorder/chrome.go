package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"webreplay/internal/models"
	"webreplay/pkg/chrome"
)

// SignalFunc observes every accepted signal together with the running count.
type SignalFunc func(count int, sig models.Signal)

type ChromeRecorder struct {
	page     context.Context
	buffer   *Buffer
	onSignal SignalFunc
	log      zerolog.Logger
}

// NewChromeRecorder records from the page tab bound to pageCtx.
func NewChromeRecorder(pageCtx context.Context, onSignal SignalFunc, log zerolog.Logger) *ChromeRecorder {
	return &ChromeRecorder{
		page:     pageCtx,
		buffer:   NewBuffer(),
		onSignal: onSignal,
		log:      log,
	}
}

// Record attaches to the page, opens startURL and captures for exactly
// duration. The collected signals are then converted into a session. When
// ctx ends first, the session captured so far is returned with ctx.Err().
func (r *ChromeRecorder) Record(ctx context.Context, startURL string, duration time.Duration) (models.Session, error) {
	chromedp.ListenTarget(r.page, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == BindingName {
			r.HandleBinding(e.Payload)
		}
	})

	// The binding has to exist before the first navigation, otherwise the
	// first document has nothing to post to.
	err := chromedp.Run(r.page,
		runtime.AddBinding(BindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(RecorderScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(startURL),
		chromedp.Evaluate(RecorderScript, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	r.log.Info().Str("url", startURL).Dur("duration", duration).Msg("👆 Recording events...")

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-r.page.Done():
	case <-ctx.Done():
	}

	// A cancelled capture still hands back what it has; callers decide
	// whether a partial session is worth keeping.
	session := r.Finalize()
	if err := ctx.Err(); err != nil {
		r.log.Warn().Int("events", len(session)).Msg("⚠️ Capture cancelled before the window closed")
		return session, err
	}
	if r.page.Err() != nil {
		r.log.Warn().Int("events", len(session)).Msg("⚠️ Browser went away before the capture window closed")
	}
	return session, nil
}

// HandleBinding decodes one page message. Undecodable messages are lost.
func (r *ChromeRecorder) HandleBinding(payload string) {
	var sig models.Signal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		r.log.Debug().Err(err).Msg("dropping undecodable signal")
		return
	}
	count := r.buffer.Append(sig)
	if r.onSignal != nil {
		r.onSignal(count, sig)
	}
}

// Finalize converts everything captured so far into a session.
func (r *ChromeRecorder) Finalize() models.Session {
	session, report := models.Finalize(r.buffer.Snapshot())
	for _, err := range report.Errors {
		r.log.Debug().Err(err).Msg("dropped invalid signal")
	}
	if report.Dropped > 0 {
		r.log.Warn().Int("dropped", report.Dropped).Msg("⚠️ Some captured signals were invalid")
	}
	return session
}

// Options configures a standalone capture run.
type Options struct {
	Browser  chrome.Options
	Duration time.Duration
	OnSignal SignalFunc
}

// Capture launches a browser, records one session from startURL and closes
// the browser again.
func Capture(ctx context.Context, startURL string, opts Options, log zerolog.Logger) (models.Session, error) {
	browser, err := chrome.Launch(ctx, opts.Browser, log)
	if err != nil {
		return nil, err
	}
	defer browser.Close()

	r := NewChromeRecorder(browser.Context(), opts.OnSignal, log)
	return r.Record(ctx, startURL, opts.Duration)
}
