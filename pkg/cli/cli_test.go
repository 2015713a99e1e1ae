package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"screenlist/pkg/cache"
	"screenlist/pkg/config"
	"screenlist/pkg/db"
	"screenlist/pkg/domain"

	"github.com/stretchr/testify/require"
)

const selectorsTemplate = `{
  // detail source served by the test server
  resolvers: {
    local: {
      name: "local",
      search: {
        url: "%s/find?q=%%s",
        ready: "ul.results",
        candidate: { selector: "ul.results a", attr: "href" },
      },
      detail: {
        ready: "h1",
        name: { selector: "h1" },
        year: { selector: "span.year" },
        rating: { selector: "span.rating" },
        genre: { selector: "span.genre" },
        duration: { selector: "span.runtime" },
        description: { selector: "p.plot" },
      },
    },
  },
}`

type workspace struct {
	dir    string
	config string
	titles string
	srv    *httptest.Server
}

func newWorkspace(t *testing.T, titles ...string) *workspace {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(config.Reset)

	known := map[string]string{"Dune Part Two": "/title/tt1/", "The Bear": "/title/tt2/"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/find":
			fmt.Fprint(w, `<html><body><ul class="results">`)
			if href, ok := known[r.URL.Query().Get("q")]; ok {
				fmt.Fprintf(w, `<li><a href="%s">hit</a></li>`, href)
			}
			fmt.Fprint(w, `</ul></body></html>`)
		case "/title/tt1/":
			fmt.Fprint(w, `<html><body><h1>Dune: Part Two</h1><span class="year">2024</span><span class="rating">8.5</span><span class="genre">Sci-Fi</span><span class="runtime">2h 46m</span><p class="plot">Paul unites with the Fremen.</p></body></html>`)
		case "/title/tt2/":
			fmt.Fprint(w, `<html><body><h1>The Bear</h1><span class="year">2022</span><span class="rating">5.1</span><span class="genre">Drama</span><span class="runtime">30m</span><p class="plot">A chef.</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	ws := &workspace{
		dir:    dir,
		config: filepath.Join(dir, "screenlist.yaml"),
		titles: filepath.Join(dir, "titles.txt"),
		srv:    srv,
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "selectors.json5"), []byte(fmt.Sprintf(selectorsTemplate, srv.URL)), 0o644))
	require.NoError(t, os.WriteFile(ws.config, []byte(`
app:
  data_dir: data
  selectors: selectors.json5
  log_level: error
http:
  client_type: cloudflare
  rate_per_second: 1000
  burst: 10
browser:
  max_wait: 2s
output:
  dir: out
`), 0o644))

	content := ""
	for _, title := range titles {
		content += title + "\n"
	}
	require.NoError(t, os.WriteFile(ws.titles, []byte(content), 0o644))
	return ws
}

func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", ws.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// Test Case 1: TestFileCommand_EndToEnd
// Input: three titles, one unknown to the detail source, one rated below the threshold
// Expected Output: report with one entry, unresolved block listing the unknown title
func TestFileCommand_EndToEnd(t *testing.T) {
	ws := newWorkspace(t, "Dune Part Two", "The Bear", "Nothing Like This")

	output, err := ws.run(t, "file", ws.titles, "--profile", "local", "--rating", "6")
	require.NoError(t, err)
	require.Contains(t, output, "in report")
	require.Contains(t, output, "Nothing Like This")
	require.Contains(t, output, "no-candidates")

	report, err := os.ReadFile(filepath.Join(ws.dir, "out", "watchlist.html"))
	require.NoError(t, err)
	require.Contains(t, string(report), "Dune: Part Two")
	require.NotContains(t, string(report), "The Bear")
	require.FileExists(t, filepath.Join(ws.dir, "out", "watchlistupdated.json"))

	// both resolved titles are cached, including the filtered one
	records, err := cache.NewFileStore(filepath.Join(ws.dir, "data", "file.json")).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Contains(t, records, domain.CanonicalKey("the bear"))
}

func TestFileCommand_NothingSelectedExitsNonZero(t *testing.T) {
	ws := newWorkspace(t, "Nothing Like This")

	_, err := ws.run(t, "file", ws.titles, "--profile", "local")
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 1, exitErr.Code)
}

func TestFileCommand_UnknownProfile(t *testing.T) {
	ws := newWorkspace(t, "Dune Part Two")

	_, err := ws.run(t, "file", ws.titles, "--profile", "nope")
	require.Error(t, err)
	var exitErr *ExitError
	require.False(t, errors.As(err, &exitErr))
}

func TestCacheCommands(t *testing.T) {
	ws := newWorkspace(t, "Dune Part Two", "The Bear")
	_, err := ws.run(t, "file", ws.titles, "--profile", "local")
	require.NoError(t, err)

	// Test Case 1: list
	output, err := ws.run(t, "cache", "list", "file")
	require.NoError(t, err)
	require.Contains(t, output, "Dune: Part Two")
	require.Contains(t, output, "8.5")

	// Test Case 2: list with query
	output, err = ws.run(t, "cache", "list", "file", "-q", "bear")
	require.NoError(t, err)
	require.Contains(t, output, "The Bear")
	require.NotContains(t, output, "Dune")

	// Test Case 3: prune by title
	output, err = ws.run(t, "cache", "prune", "file", "--title", "The Bear")
	require.NoError(t, err)
	require.Contains(t, output, "1 pruned, 1 kept")

	records, err := cache.NewFileStore(filepath.Join(ws.dir, "data", "file.json")).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Test Case 4: prune without a selector
	_, err = ws.run(t, "cache", "prune", "file")
	require.Error(t, err)
}

func TestReplicateToSQLite(t *testing.T) {
	ws := newWorkspace(t, "Dune Part Two", "The Bear")
	_, err := ws.run(t, "file", ws.titles, "--profile", "local")
	require.NoError(t, err)

	target := filepath.Join(ws.dir, "replica.db")
	output, err := ws.run(t, "replicate", "--from", "cache", "--preset", "file", "--to-sqlite", target)
	require.NoError(t, err)
	require.Contains(t, output, "replicated 2 records (2 written) into sqlite")

	lite := db.NewSQLiteClient(target)
	require.NoError(t, lite.Connect(context.Background()))
	defer lite.Close()
	got, err := lite.GetAllRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	_, err = ws.run(t, "replicate", "--from", "s3")
	require.Error(t, err)
}

func TestPruneRecords(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	records := domain.RecordSet{
		"fresh":  {Key: "fresh", ResolvedAt: now.Add(-time.Hour)},
		"stale":  {Key: "stale", ResolvedAt: now.Add(-48 * time.Hour)},
		"bluey":  {Key: "bluey", ResolvedAt: now},
		"absent": {Key: "absent", ResolvedAt: now},
	}

	removed := pruneRecords(records, []string{"  BLUEY "}, 24*time.Hour, now)
	require.Equal(t, []domain.CanonicalKey{"bluey", "stale"}, removed)
	require.Len(t, records, 2)
	require.Contains(t, records, domain.CanonicalKey("fresh"))
}
