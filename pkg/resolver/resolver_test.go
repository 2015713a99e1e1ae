package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"screenlist/pkg/browser"
	"screenlist/pkg/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// mockSession is a mock implementation of browser.Session serving canned pages by URL
type mockSession struct {
	pages      map[string]string
	gotoErrs   map[string]error
	slow       map[string]bool
	panicOnDoc map[string]bool
	visited    []string
	current    string
	doc        *goquery.Document
}

func newMockSession() *mockSession {
	return &mockSession{
		pages:      map[string]string{},
		gotoErrs:   map[string]error{},
		slow:       map[string]bool{},
		panicOnDoc: map[string]bool{},
	}
}

func (m *mockSession) Goto(ctx context.Context, url string) error {
	m.visited = append(m.visited, url)
	m.current = url
	m.doc = nil
	if m.slow[url] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.gotoErrs[url]; err != nil {
		return err
	}
	page, ok := m.pages[url]
	if !ok {
		return fmt.Errorf("unexpected status 404 for %s", url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return err
	}
	m.doc = doc
	return nil
}

func (m *mockSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.doc == nil {
		return browser.ErrNoDocument
	}
	if m.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %q", browser.ErrTimeout, selector)
	}
	return nil
}

func (m *mockSession) Document(ctx context.Context) (*goquery.Document, error) {
	if m.panicOnDoc[m.current] {
		panic("document exploded")
	}
	if m.doc == nil {
		return nil, browser.ErrNoDocument
	}
	return m.doc, nil
}

func (m *mockSession) URL() string  { return m.current }
func (m *mockSession) Close() error { return nil }

// stubExtractor is a mock implementation of content.Extractor
type stubExtractor struct {
	excerpt string
	err     error
	calls   int
}

func (s *stubExtractor) ExtractTitle(string) (string, error) { return "", nil }
func (s *stubExtractor) ExtractExcerpt(string) (string, error) {
	s.calls++
	return s.excerpt, s.err
}

const (
	searchHit = `<html><body><section>
<ul class="ipc-metadata-list">
  <li><a class="ipc-metadata-list-summary-item__t" href="/title/tt15239678/?ref_=fn_al_tt_1">Dune: Part Two</a></li>
  <li><a class="ipc-metadata-list-summary-item__t" href="/title/tt0000002/">Dune Drifter</a></li>
</ul></section></body></html>`

	searchEmpty = `<html><body><ul class="ipc-metadata-list"></ul></body></html>`

	searchNoList = `<html><body><p>No results found for your search</p></body></html>`

	filmDetail = `<html><body>
<h1 data-testid="hero__pageTitle"><span class="hero__primary-text">Dune: Part Two</span></h1>
<ul><li>Movie</li><li><a>2024</a></li><li>PG-13</li><li>2h 46m</li></ul>
<div data-testid="hero-rating-bar__aggregate-rating__score"><span>8.5</span><span>/10</span></div>
<div class="ipc-chip-list__scroller"><a>Action</a><a>Adventure</a><a>Drama</a></div>
<span data-testid="plot-xl">Paul Atreides unites with the Fremen.</span>
<ul><li data-testid="title-techspec_runtime"><span>Runtime</span><div>2 hours 46 minutes</div></li></ul>
</body></html>`

	legacyDetail = `<html><body>
<div class="title_wrapper"><h1>Severance&nbsp;<span id="titleYear">(<a>2022</a>)</span></h1></div>
<div class="ratingValue"><strong><span>8.7</span></strong></div>
</body></html>`

	nameless = `<html><body><h1 data-testid="hero__pageTitle"></h1></body></html>`

	unexpected = `<html><body><h2>Access denied</h2></body></html>`

	detailURL = "https://www.imdb.com/title/tt15239678/"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestResolver(session browser.Session, profile Profile, opts ...Option) *Resolver {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(session, profile, 200*time.Millisecond, opts...)
}

// Test Case 1: TestResolve_FullRecord
// Input: a search page with two candidates and a modern detail page
// Expected Output: the first candidate is followed and every field is read
func TestResolve_FullRecord(t *testing.T) {
	profile := IMDBFilm()
	session := newMockSession()
	session.pages[profile.SearchURL("Dune Part Two")] = searchHit
	session.pages[detailURL] = filmDetail

	item := domain.RawItem{Title: "Dune Part Two", Weeks: 3, Rank: 3}
	res := newTestResolver(session, profile).Resolve(context.Background(), item)

	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	rec := res.Record
	require.Equal(t, domain.CanonicalKey("dune part two"), rec.Key)
	require.Equal(t, "Dune: Part Two", rec.DisplayName)
	require.Equal(t, "2024", rec.Year)
	require.NotNil(t, rec.Rating)
	require.InDelta(t, 8.5, *rec.Rating, 0.0001)
	require.Equal(t, "Action, Adventure, Drama", rec.GenreOrEmpty())
	require.Equal(t, "2 hours 46 minutes", rec.DurationOrEmpty())
	require.Equal(t, "Paul Atreides unites with the Fremen.", rec.DescriptionOrEmpty())
	require.Equal(t, detailURL, rec.DetailURL)
	require.Equal(t, fixedNow, rec.ResolvedAt)
	require.Equal(t, item, res.Item)
	require.Equal(t, []string{profile.SearchURL("Dune Part Two"), detailURL}, session.visited)
}

// Test Case 2: TestResolve_NoCandidates
// Input: a search page with an empty result list
// Expected Output: Unresolved with ReasonNoCandidates, original item kept, no detail fetch
func TestResolve_NoCandidates(t *testing.T) {
	profile := IMDBTV()
	session := newMockSession()
	session.pages[profile.SearchURL("Obscure Show")] = searchEmpty

	item := domain.RawItem{Title: "Obscure.Show.S01E01.720p", Show: "Obscure Show", Season: 1, Episode: 1}
	res := newTestResolver(session, profile).Resolve(context.Background(), item)

	require.False(t, res.OK())
	require.Equal(t, domain.ReasonNoCandidates, res.Reason)
	require.ErrorIs(t, res.Err, ErrNoCandidates)
	require.Equal(t, "Obscure.Show.S01E01.720p", res.AsUnresolved().Item.Title)
	require.Len(t, session.visited, 1)
}

func TestResolve_SearchListNeverAppears(t *testing.T) {
	profile := IMDBFilm()
	session := newMockSession()
	session.pages[profile.SearchURL("Nothing")] = searchNoList

	res := newTestResolver(session, profile).Resolve(context.Background(), domain.RawItem{Title: "Nothing"})

	require.Equal(t, domain.ReasonNoCandidates, res.Reason)
}

func TestResolve_FailureReasons(t *testing.T) {
	profile := IMDBFilm()
	searchURL := profile.SearchURL("Dune Part Two")

	cases := []struct {
		name   string
		setup  func(s *mockSession)
		reason domain.Reason
	}{
		{
			name:   "search navigation error",
			setup:  func(s *mockSession) { s.gotoErrs[searchURL] = errors.New("net::ERR_CONNECTION_RESET") },
			reason: domain.ReasonLookupFailed,
		},
		{
			name: "detail navigation error",
			setup: func(s *mockSession) {
				s.pages[searchURL] = searchHit
				s.gotoErrs[detailURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")
			},
			reason: domain.ReasonFetchFailed,
		},
		{
			name: "detail page with unexpected shape",
			setup: func(s *mockSession) {
				s.pages[searchURL] = searchHit
				s.pages[detailURL] = unexpected
			},
			reason: domain.ReasonTimeout,
		},
		{
			name: "detail page without a name",
			setup: func(s *mockSession) {
				s.pages[searchURL] = searchHit
				s.pages[detailURL] = nameless
			},
			reason: domain.ReasonMissingName,
		},
		{
			name: "detail navigation hangs past max wait",
			setup: func(s *mockSession) {
				s.pages[searchURL] = searchHit
				s.slow[detailURL] = true
			},
			reason: domain.ReasonTimeout,
		},
		{
			name: "extraction panics",
			setup: func(s *mockSession) {
				s.pages[searchURL] = searchHit
				s.pages[detailURL] = filmDetail
				s.panicOnDoc[detailURL] = true
			},
			reason: domain.ReasonFetchFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := newMockSession()
			tc.setup(session)

			var res domain.Resolution
			require.NotPanics(t, func() {
				res = newTestResolver(session, profile).Resolve(context.Background(), domain.RawItem{Title: "Dune Part Two"})
			})
			require.False(t, res.OK())
			require.Equal(t, tc.reason, res.Reason)
			require.Error(t, res.Err)
		})
	}
}

func TestResolve_Canceled(t *testing.T) {
	profile := IMDBFilm()
	session := newMockSession()
	session.pages[profile.SearchURL("Dune")] = searchHit

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestResolver(session, profile).Resolve(ctx, domain.RawItem{Title: "Dune"})
	require.Equal(t, domain.ReasonCanceled, res.Reason)
}

// Test Case 3: TestResolve_LegacyLayoutWithFallback
// Input: a legacy detail page with name, year and rating only
// Expected Output: resolved; genre and duration empty; description from the excerpt fallback
func TestResolve_LegacyLayoutWithFallback(t *testing.T) {
	profile := IMDBTV()
	session := newMockSession()
	session.pages[profile.SearchURL("Severance")] = `<html><body><div class="findSection"><table><tr>
<td class="result_text"><a href="/title/tt11280740/?ref_=fn_tt_tt_1#top">Severance</a></td></tr></table></div></body></html>`
	session.pages["https://www.imdb.com/title/tt11280740/"] = legacyDetail

	excerpts := &stubExtractor{excerpt: "Office workers with split memories."}
	res := newTestResolver(session, profile, WithExtractor(excerpts)).Resolve(context.Background(),
		domain.RawItem{Title: "Severance S02E01 1080p", Show: "Severance", Season: 2, Episode: 1})

	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	require.Equal(t, "Severance", res.Record.DisplayName)
	require.Equal(t, "2022", res.Record.Year)
	require.InDelta(t, 8.7, *res.Record.Rating, 0.0001)
	require.Nil(t, res.Record.Genre)
	require.Nil(t, res.Record.Duration)
	require.Equal(t, "Office workers with split memories.", res.Record.DescriptionOrEmpty())
	require.Equal(t, 1, excerpts.calls)
}

// captureLogs routes the default slog logger into a buffer for the duration of the test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

// Test Case 4: TestResolve_WarnsPerEmptyField
// Input: a legacy detail page without genre, duration or description, and a working excerpt fallback
// Expected Output: one warning per empty field, description included although the fallback fills it
func TestResolve_WarnsPerEmptyField(t *testing.T) {
	logs := captureLogs(t)

	profile := IMDBTV()
	session := newMockSession()
	session.pages[profile.SearchURL("Severance")] = searchHit
	session.pages[detailURL] = legacyDetail

	excerpts := &stubExtractor{excerpt: "Office workers with split memories."}
	res := newTestResolver(session, profile, WithExtractor(excerpts)).Resolve(context.Background(), domain.RawItem{Title: "Severance"})
	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	require.Equal(t, "Office workers with split memories.", res.Record.DescriptionOrEmpty())

	var fields []string
	for _, raw := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal(raw, &line))
		if line["msg"] != "Resolver: field has no value" {
			continue
		}
		require.Equal(t, "WARN", line["level"])
		require.Equal(t, "Severance", line["title"])
		require.Equal(t, detailURL, line["url"])
		fields = append(fields, line["field"].(string))
	}
	require.Equal(t, []string{"genre", "duration", "description"}, fields)
}

func TestResolve_FullRecordWarnsNothing(t *testing.T) {
	logs := captureLogs(t)

	profile := IMDBFilm()
	session := newMockSession()
	session.pages[profile.SearchURL("Dune Part Two")] = searchHit
	session.pages[detailURL] = filmDetail

	res := newTestResolver(session, profile).Resolve(context.Background(), domain.RawItem{Title: "Dune Part Two"})
	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	require.NotContains(t, logs.String(), "field has no value")
}

func TestResolve_FallbackFailureLeavesDescriptionEmpty(t *testing.T) {
	profile := IMDBTV()
	session := newMockSession()
	session.pages[profile.SearchURL("Severance")] = searchHit
	session.pages[detailURL] = legacyDetail

	excerpts := &stubExtractor{err: errors.New("no readable text")}
	res := newTestResolver(session, profile, WithExtractor(excerpts)).Resolve(context.Background(), domain.RawItem{Title: "Severance"})

	require.True(t, res.OK())
	require.Nil(t, res.Record.Description)
}

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		base, href, want string
	}{
		{"https://www.imdb.com/find/?q=x", "/title/tt1/?ref_=fn", "https://www.imdb.com/title/tt1/"},
		{"https://www.imdb.com/find/?q=x", "https://WWW.IMDB.com:443/title/tt2/#top", "https://www.imdb.com/title/tt2/"},
		{"https://www.imdb.com/a/b/", "../title//tt3/", "https://www.imdb.com/a/title/tt3/"},
		{"", "http://example.com/x?y=1", "http://example.com/x"},
	}
	for _, tc := range cases {
		got, err := canonicalURL(tc.base, tc.href)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.href)
	}

	_, err := canonicalURL("", "/relative/only")
	require.Error(t, err)
}

func TestParseRating(t *testing.T) {
	require.Nil(t, parseRating(nil))
	require.Nil(t, parseRating([]string{"", "N/A"}))

	r := parseRating([]string{"/10", "7.2", "8"})
	require.NotNil(t, r)
	require.InDelta(t, 7.2, *r, 0.0001)

	r = parseRating([]string{"6.0/10"})
	require.InDelta(t, 6.0, *r, 0.0001)
}

func TestProfileValidate(t *testing.T) {
	for name, p := range Builtin() {
		require.NoError(t, p.Validate(), name)
	}

	p := IMDBTV()
	p.Search.URL = "https://www.imdb.com/find"
	require.Error(t, p.Validate())

	p = IMDBFilm()
	p.Detail.Name.Selector = ""
	require.Error(t, p.Validate())

	require.Equal(t, "https://www.imdb.com/find/?s=tt&ttype=ft&q=The+Holdovers", IMDBFilm().SearchURL(" The Holdovers "))
}
