package browser

import (
	"context"
	"errors"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrTimeout is returned by WaitFor when the selector never appeared
	ErrTimeout = errors.New("timed out waiting for selector")
	// ErrSessionInit is returned when a session cannot be started
	ErrSessionInit = errors.New("failed to start page session")
	// ErrNoDocument is returned when Document is called before a successful Goto
	ErrNoDocument = errors.New("no document loaded")
)

// Session is the page-fetch capability: navigate to a page, wait for content, read the DOM.
// A session is owned by one caller at a time and is not safe for concurrent use.
type Session interface {
	// Goto navigates to url and blocks until the page is loaded or ctx ends
	Goto(ctx context.Context, url string) error

	// WaitFor blocks until selector matches at least one element, failing with ErrTimeout
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Document returns the current page DOM
	Document(ctx context.Context) (*goquery.Document, error)

	// URL returns the location of the current page
	URL() string

	Close() error
}

// Factory opens a new session
type Factory func(ctx context.Context) (Session, error)

// Backend names a session implementation
type Backend string

const (
	StaticBackend Backend = "static"
	ChromeBackend Backend = "chrome"
)
