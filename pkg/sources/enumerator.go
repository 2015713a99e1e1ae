package sources

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"screenlist/pkg/browser"
	"screenlist/pkg/domain"
	"screenlist/pkg/identity"
)

// Stats summarizes one enumeration
type Stats struct {
	PagesVisited int
	PagesFailed  int
	Entries      int
	Unparseable  int
	Duplicates   int
	StoppedEarly bool
}

// Enumerator walks a listing page by page and produces deduplicated raw items
type Enumerator struct {
	lister  Lister
	parse   ItemParser
	session browser.Session
}

// NewEnumerator creates an enumerator. The session is used by HTML listers only.
func NewEnumerator(lister Lister, parse ItemParser, session browser.Session) *Enumerator {
	return &Enumerator{lister: lister, parse: parse, session: session}
}

// Pages yields pages 0..maxPages-1 in order, one fetch at a time.
// It stops after a page that signals NoMorePages, and after a context error.
func (e *Enumerator) Pages(ctx context.Context, maxPages int) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		for index := 0; index < maxPages; index++ {
			if err := ctx.Err(); err != nil {
				yield(Page{Index: index}, err)
				return
			}

			page, err := e.lister.ListPage(ctx, e.session, index)
			if !yield(page, err) {
				return
			}
			if err == nil && page.NoMorePages {
				return
			}
		}
	}
}

// Enumerate collects items from up to maxPages pages.
// Unparseable entries and failed pages are skipped; items are deduplicated by canonical key,
// first seen wins. The only error is context cancellation.
func (e *Enumerator) Enumerate(ctx context.Context, maxPages int) ([]domain.RawItem, Stats, error) {
	var (
		stats     Stats
		items     []domain.RawItem
		seenKeys  = map[domain.CanonicalKey]bool{}
		seenTitle = map[string]bool{}
	)

	slog.Info("Enumerator: walking listing", "lister", e.lister.Name(), "max_pages", maxPages)

	for page, err := range e.Pages(ctx, maxPages) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return items, stats, err
			}
			stats.PagesFailed++
			slog.Warn("Enumerator: failed to read page, continuing", "lister", e.lister.Name(), "page", page.Index, "url", page.URL, "error", err)
			continue
		}
		stats.PagesVisited++
		stats.Entries += len(page.Entries)
		if page.NoMorePages {
			stats.StoppedEarly = page.Index < maxPages-1
		}

		if isRepeatPage(page, seenTitle) {
			slog.Info("Enumerator: page repeats earlier entries, stopping pagination", "lister", e.lister.Name(), "page", page.Index)
			stats.StoppedEarly = page.Index < maxPages-1
			break
		}

		for _, entry := range page.Entries {
			seenTitle[entry.Title] = true

			item, err := e.parse(entry)
			if err != nil {
				stats.Unparseable++
				slog.Debug("Enumerator: skipping entry", "title", entry.Title, "error", err)
				continue
			}

			key := identity.KeyOf(item)
			if key == "" {
				stats.Unparseable++
				slog.Debug("Enumerator: skipping entry with empty key", "title", entry.Title)
				continue
			}
			if seenKeys[key] {
				stats.Duplicates++
				continue
			}
			seenKeys[key] = true

			item.SourcePageIndex = page.Index
			item.Order = len(items)
			items = append(items, item)
		}
	}

	slog.Info("Enumerator: done",
		"lister", e.lister.Name(),
		"items", len(items),
		"pages", stats.PagesVisited,
		"failed_pages", stats.PagesFailed,
		"unparseable", stats.Unparseable,
		"duplicates", stats.Duplicates)
	return items, stats, nil
}

// isRepeatPage reports whether every entry of a non-empty page was already listed.
// Some sources serve the last page again for any index past the end.
func isRepeatPage(page Page, seen map[string]bool) bool {
	if page.Index == 0 || len(page.Entries) == 0 {
		return false
	}
	for _, entry := range page.Entries {
		if !seen[entry.Title] {
			return false
		}
	}
	return true
}
