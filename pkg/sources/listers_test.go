package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"screenlist/pkg/httpclient"

	"github.com/stretchr/testify/require"
)

func TestFileLister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.txt")
	content := "# watchlist\nPast Lives,\n\n  Anatomy of a Fall \npast lives\n,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lister := NewFileLister(path)
	items, stats, err := NewEnumerator(lister, ParsePlain, nil).Enumerate(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Past Lives", items[0].Title)
	require.Equal(t, "Anatomy of a Fall", items[1].Title)
	require.Equal(t, 1, stats.Duplicates)
	require.Equal(t, 1, stats.PagesVisited)
}

func TestFileLister_MissingFile(t *testing.T) {
	lister := NewFileLister(filepath.Join(t.TempDir(), "nope.txt"))
	_, err := lister.ListPage(context.Background(), nil, 0)
	require.Error(t, err)
}

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>shows</title>%s</channel></rss>`

func TestFeedLister_Paginated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprintf(w, rssTemplate, `<item><title>Shogun S01E10 720p</title><link>https://example.com/1</link></item>
<item><title> </title></item>`)
		case "1":
			fmt.Fprintf(w, rssTemplate, `<item><title>Fallout S01E08 1080p</title></item>`)
		default:
			fmt.Fprintf(w, rssTemplate, "")
		}
	}))
	defer srv.Close()

	lister := NewFeedLister("feed", srv.URL+"/rss", "?page=%d", httpclient.NewClient(httpclient.CloudflareClient), 2*time.Second)
	require.Equal(t, srv.URL+"/rss?page=2", lister.PageURL(2))

	items, stats, err := NewEnumerator(lister, ParseEpisode, nil).Enumerate(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Shogun", items[0].Show)
	require.Equal(t, "https://example.com/1", items[0].Extra["link"])
	require.Equal(t, "Fallout", items[1].Show)
	require.Equal(t, 3, stats.PagesVisited)
	require.True(t, stats.StoppedEarly)
}

func TestFeedLister_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	lister := NewFeedLister("feed", srv.URL, "", httpclient.NewClient(httpclient.CloudflareClient), time.Second)
	page, err := lister.ListPage(context.Background(), nil, 0)
	require.ErrorIs(t, err, httpclient.ErrUnexpectedStatus)
	require.True(t, page.NoMorePages)
}

// Test Case 1: TestFeedLister_UsesClientRateLimit
// Input: a client allowing one request per 100s and a paginated feed
// Expected Output: the first page is read with the client's headers; the second is held by the limiter until max wait
func TestFeedLister_UsesClientRateLimit(t *testing.T) {
	var requests int
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprintf(w, rssTemplate, `<item><title>Shogun S01E10 720p</title></item>`)
	}))
	defer srv.Close()

	client := httpclient.NewClientWithOptions(httpclient.Options{Type: httpclient.CloudflareClient, UserAgent: "screenlist-feed", RatePerSecond: 0.01, Burst: 1})
	lister := NewFeedLister("feed", srv.URL, "?page=%d", client, 200*time.Millisecond)

	page, err := lister.ListPage(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, "screenlist-feed", gotUA)

	_, err = lister.ListPage(context.Background(), nil, 1)
	require.Error(t, err)
	require.Equal(t, 1, requests)
}
