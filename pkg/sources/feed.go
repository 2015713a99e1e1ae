package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screenlist/pkg/browser"
	"screenlist/pkg/httpclient"

	"github.com/mmcdole/gofeed"
)

// FeedLister reads an RSS/Atom feed as a listing
type FeedLister struct {
	name        string
	feedURL     string
	pagePattern string
	maxWait     time.Duration
	client      *httpclient.HTTPClient
	feedParser  *gofeed.Parser
}

// NewFeedLister creates a feed lister. With an empty pagePattern the feed is a single page.
// Feeds are fetched through client, so its rate limit and spans apply; nil uses a browser profile client.
func NewFeedLister(name, feedURL, pagePattern string, client *httpclient.HTTPClient, maxWait time.Duration) *FeedLister {
	if client == nil {
		client = httpclient.NewClient(httpclient.BrowserClient)
	}
	return &FeedLister{
		name:        name,
		feedURL:     feedURL,
		pagePattern: pagePattern,
		maxWait:     maxWait,
		client:      client,
		feedParser:  gofeed.NewParser(),
	}
}

// Name returns the lister name
func (l *FeedLister) Name() string {
	return l.name
}

// PageURL builds the feed URL for a given page index
func (l *FeedLister) PageURL(index int) string {
	if index == 0 || l.pagePattern == "" {
		return l.feedURL
	}
	return l.feedURL + fmt.Sprintf(l.pagePattern, index)
}

// ListPage fetches and parses one feed page; the session is not used
func (l *FeedLister) ListPage(ctx context.Context, _ browser.Session, index int) (Page, error) {
	pageURL := l.PageURL(index)
	page := Page{Index: index, URL: pageURL, NoMorePages: l.pagePattern == ""}

	fetchCtx, cancel := withMaxWait(ctx, l.maxWait)
	defer cancel()

	body, err := l.client.GetHTML(fetchCtx, pageURL)
	if err != nil {
		return page, fmt.Errorf("failed to fetch RSS feed: %w", err)
	}

	feed, err := l.feedParser.ParseString(body)
	if err != nil {
		return page, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	if feed == nil || len(feed.Items) == 0 {
		slog.Info("FeedLister: feed contains no items, stopping pagination", "lister", l.name, "page", index)
		page.NoMorePages = true
		return page, nil
	}

	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		fields := map[string]string{}
		if item.Link != "" {
			fields["link"] = item.Link
		}
		page.Entries = append(page.Entries, Entry{Title: title, Fields: fields})
	}

	slog.Debug("FeedLister: extracted entries", "lister", l.name, "page", index, "entries", len(page.Entries))
	return page, nil
}
