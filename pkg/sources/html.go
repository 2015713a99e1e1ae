package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screenlist/pkg/browser"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("screenlist/sources")

// HTMLProfile describes a paginated HTML listing
type HTMLProfile struct {
	Name string `json:"name"`

	// BaseURL is page 0. Page n (n >= 1) is BaseURL + fmt.Sprintf(PagePattern, n).
	BaseURL     string `json:"baseURL"`
	PagePattern string `json:"pagePattern,omitempty"`

	// Ready must match before the page is read.
	Ready string `json:"ready,omitempty"`

	// Entry selects one element per listing row; Title and Fields are read relative to it.
	Entry  string                       `json:"entry"`
	Title  browser.FieldSpec            `json:"title"`
	Fields map[string]browser.FieldSpec `json:"fields,omitempty"`

	// NextPage, when set, is a format with the next page number; a page without a
	// match is the last one.
	NextPage string `json:"nextPage,omitempty"`

	// EmptyMarkers are texts that indicate a page past the end (e.g. "0 episodes found").
	EmptyMarkers []string `json:"emptyMarkers,omitempty"`

	// SinglePage listings have no pagination at all.
	SinglePage bool `json:"singlePage,omitempty"`
}

// HTMLLister reads listing pages through a browser session
type HTMLLister struct {
	profile HTMLProfile
	maxWait time.Duration
}

// NewHTMLLister creates a lister for profile; maxWait bounds each navigation and wait
func NewHTMLLister(profile HTMLProfile, maxWait time.Duration) *HTMLLister {
	return &HTMLLister{profile: profile, maxWait: maxWait}
}

// Name returns the profile name
func (l *HTMLLister) Name() string {
	return l.profile.Name
}

// PageURL builds the URL for a given page index
func (l *HTMLLister) PageURL(index int) string {
	if index == 0 || l.profile.PagePattern == "" {
		return l.profile.BaseURL
	}
	return l.profile.BaseURL + fmt.Sprintf(l.profile.PagePattern, index)
}

// ListPage opens page index and extracts its entries
func (l *HTMLLister) ListPage(ctx context.Context, session browser.Session, index int) (Page, error) {
	ctx, span := tracer.Start(ctx, "HTMLLister.ListPage")
	defer span.End()

	pageURL := l.PageURL(index)
	span.SetAttributes(attribute.String("url", pageURL), attribute.Int("page", index))
	page := Page{Index: index, URL: pageURL}

	if err := l.open(ctx, session, pageURL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return page, err
	}

	doc, err := session.Document(ctx)
	if err != nil {
		return page, fmt.Errorf("failed to read listing page: %w", err)
	}

	if marker, found := l.findEmptyMarker(doc.Text()); found {
		slog.Info("HTMLLister: found empty content marker, stopping pagination", "lister", l.profile.Name, "page", index, "marker", marker)
		page.NoMorePages = true
		return page, nil
	}

	doc.Find(l.profile.Entry).Each(func(_ int, row *goquery.Selection) {
		title := browser.ExtractString(row, l.profile.Title)
		fields := make(map[string]string, len(l.profile.Fields))
		for name, spec := range l.profile.Fields {
			if v := browser.ExtractString(row, spec); v != "" {
				fields[name] = v
			}
		}
		page.Entries = append(page.Entries, Entry{Title: title, Fields: fields})
	})

	switch {
	case l.profile.SinglePage:
		page.NoMorePages = true
	case len(page.Entries) == 0:
		slog.Info("HTMLLister: page has no entries, stopping pagination", "lister", l.profile.Name, "page", index)
		page.NoMorePages = true
	case l.profile.NextPage != "":
		next := fmt.Sprintf(l.profile.NextPage, index+1)
		if doc.Find(next).Length() == 0 {
			slog.Debug("HTMLLister: no link to next page", "lister", l.profile.Name, "page", index)
			page.NoMorePages = true
		}
	}

	slog.Debug("HTMLLister: extracted entries", "lister", l.profile.Name, "page", index, "entries", len(page.Entries))
	return page, nil
}

// open navigates to the page and waits for the ready selector, each bounded by maxWait
func (l *HTMLLister) open(ctx context.Context, session browser.Session, pageURL string) error {
	gotoCtx, cancel := withMaxWait(ctx, l.maxWait)
	defer cancel()
	if err := session.Goto(gotoCtx, pageURL); err != nil {
		return fmt.Errorf("failed to open listing page: %w", err)
	}

	if l.profile.Ready == "" {
		return nil
	}
	if err := session.WaitFor(ctx, l.profile.Ready, l.maxWait); err != nil {
		return fmt.Errorf("listing page not ready: %w", err)
	}
	return nil
}

// findEmptyMarker reports the first empty-content marker present in text
func (l *HTMLLister) findEmptyMarker(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, marker := range l.profile.EmptyMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return marker, true
		}
	}
	return "", false
}

func withMaxWait(ctx context.Context, maxWait time.Duration) (context.Context, context.CancelFunc) {
	if maxWait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, maxWait)
}
