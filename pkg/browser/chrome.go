package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures a headless Chrome session
type ChromeOptions struct {
	Headless  bool
	ExecPath  string // empty means look Chrome up on PATH
	UserAgent string
}

// ChromeSession drives a single Chrome tab through chromedp
type ChromeSession struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	url         string
}

// NewChromeSession starts Chrome and opens one tab. Failure wraps ErrSessionInit.
func NewChromeSession(ctx context.Context, opts ChromeOptions) (*ChromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1280, 720),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug("ChromeSession: " + fmt.Sprintf(format, args...))
	}))

	// An empty Run starts the browser so start-up failures surface here
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %v", ErrSessionInit, err)
	}

	return &ChromeSession{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// ChromeFactory returns a Factory that starts a new Chrome per session
func ChromeFactory(opts ChromeOptions) Factory {
	return func(ctx context.Context) (Session, error) {
		return NewChromeSession(ctx, opts)
	}
}

// opContext bounds a browser action by the caller's deadline and cancellation
func (s *ChromeSession) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(s.tabCtx)
	if deadline, ok := ctx.Deadline(); ok {
		cancel()
		opCtx, cancel = context.WithDeadline(s.tabCtx, deadline)
	}
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// Goto navigates the tab and waits for the load event
func (s *ChromeSession) Goto(ctx context.Context, url string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	s.url = url
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	var location string
	if err := chromedp.Run(opCtx, chromedp.Location(&location)); err == nil && location != "" {
		s.url = location
	}
	return nil
}

// WaitFor waits until selector is present in the DOM
func (s *ChromeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	err := chromedp.Run(opCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %q on %s", ErrTimeout, selector, s.url)
	}
	return err
}

// Document snapshots the tab's current DOM
func (s *ChromeSession) Document(ctx context.Context) (*goquery.Document, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to read DOM: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// URL returns the tab's location after the last navigation
func (s *ChromeSession) URL() string {
	return s.url
}

// Close shuts the tab and the browser
func (s *ChromeSession) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}
