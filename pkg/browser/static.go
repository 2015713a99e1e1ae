package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screenlist/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
)

// StaticSession fetches pages over plain HTTP and parses them with goquery.
// No scripts run, so WaitFor succeeds only when the served markup already has the selector.
type StaticSession struct {
	client *httpclient.HTTPClient
	url    string
	doc    *goquery.Document
}

// NewStaticSession creates a session over the given client
func NewStaticSession(client *httpclient.HTTPClient) *StaticSession {
	return &StaticSession{client: client}
}

// StaticFactory returns a Factory that opens static sessions sharing one client
func StaticFactory(client *httpclient.HTTPClient) Factory {
	return func(ctx context.Context) (Session, error) {
		return NewStaticSession(client), nil
	}
}

// Goto fetches and parses the page
func (s *StaticSession) Goto(ctx context.Context, url string) error {
	s.url = url
	s.doc = nil

	slog.Debug("StaticSession: opening page", "url", url)
	html, err := s.client.GetHTML(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	s.doc = doc
	return nil
}

// WaitFor checks the loaded document for selector
func (s *StaticSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.doc == nil {
		return ErrNoDocument
	}
	if s.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %q on %s", ErrTimeout, selector, s.url)
	}
	return nil
}

// Document returns the parsed page
func (s *StaticSession) Document(ctx context.Context) (*goquery.Document, error) {
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	return s.doc, nil
}

// URL returns the last requested page
func (s *StaticSession) URL() string {
	return s.url
}

// Close releases nothing; the HTTP client is shared
func (s *StaticSession) Close() error {
	return nil
}
