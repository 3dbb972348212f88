package capture

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// Default viewport for the week-view snapshot: wide enough for seven day
// columns plus the time gutter at the stock geometry.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 2020
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based week-view screenshot,
// used for front-desk printouts and the lobby display.
type Options struct {
	// BaseURL is the locally served UI, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// WeekStart selects which week the calendar page renders. Zero means
	// the current week.
	WeekStart time.Time

	// OutputPath is where the PNG will be written, e.g.
	// "/var/lib/dentcal/preview.png".
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

// WeekPNG launches a headless Chromium via chromedp, navigates to the
// /calendar view for the requested week, waits for the page to signal that
// the grid has rendered (the root element sets data-ready="true" once
// /api/week has been drawn), and writes a full-page PNG screenshot.
func WeekPNG(parentCtx context.Context, opts Options) error {
	if opts.BaseURL == "" {
		return fmt.Errorf("capture: BaseURL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	target := opts.BaseURL + "/calendar"
	if !opts.WeekStart.IsZero() {
		q := url.Values{"week": {opts.WeekStart.Format("2006-01-02")}}
		target += "?" + q.Encode()
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	return nil
}
