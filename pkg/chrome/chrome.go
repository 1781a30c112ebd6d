package chrome

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"webreplay/pkg/logger"
)

var ErrChromeNotFound = errors.New("Chrome browser not found. Please install Google Chrome or Chromium")

// installPaths lists the usual Chrome and Chromium install locations per GOOS.
var installPaths = map[string][]string{
	"linux": {
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	},
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
}

// binaryNames are looked up in PATH when no install location matched.
var binaryNames = []string{"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"}

// GetChromePath returns the first Chrome or Chromium binary found on this
// machine, or "" when there is none.
func GetChromePath() string {
	return findChrome(installPaths[runtime.GOOS], fileExists, exec.LookPath)
}

func findChrome(paths []string, exists func(string) bool, lookPath func(string) (string, error)) string {
	for _, path := range paths {
		if exists(path) {
			return path
		}
	}
	for _, name := range binaryNames {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Options configures a browser launch.
type Options struct {
	Path     string // empty: auto-detect
	Headless bool
	Device   string // preset name from Devices, empty for none
}

// Browser owns one Chrome process and the single page tab driven through it.
type Browser struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// Launch starts Chrome and opens one page tab. The returned browser is bound to
// parent: cancelling parent tears the process down as well.
func Launch(parent context.Context, opts Options, log zerolog.Logger) (*Browser, error) {
	chromePath := opts.Path
	if chromePath == "" {
		chromePath = GetChromePath()
	}
	if chromePath == "" {
		return nil, ErrChromeNotFound
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-features", "TranslateUI,GlobalMediaControls"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("force-device-scale-factor", "1"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf(log, zerolog.DebugLevel)),
		chromedp.WithErrorf(logger.Printf(log, zerolog.WarnLevel)),
	)

	b := &Browser{
		ctx: ctx,
		cancel: func() {
			ctxCancel()
			allocCancel()
		},
		log: log,
	}

	// The first Run starts the process.
	if err := chromedp.Run(ctx); err != nil {
		b.cancel()
		return nil, err
	}
	if err := Emulate(ctx, opts.Device); err != nil {
		b.cancel()
		return nil, err
	}

	log.Info().Str("path", chromePath).Bool("headless", opts.Headless).Str("device", opts.Device).Msg("🚀 Chrome started")
	return b, nil
}

// Context is the chromedp context of the page tab.
func (b *Browser) Context() context.Context {
	return b.ctx
}

// Close gracefully closes the browser, then releases the allocator.
func (b *Browser) Close() {
	if err := chromedp.Cancel(b.ctx); err != nil {
		b.log.Debug().Err(err).Msg("graceful browser close failed")
	}
	b.cancel()
	b.log.Info().Msg("🧹 Chrome closed")
}
