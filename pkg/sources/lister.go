package sources

import (
	"context"
	"errors"

	"screenlist/pkg/browser"
	"screenlist/pkg/domain"
)

// ErrUnparseable is returned by item parsers for entries that do not have the expected shape
var ErrUnparseable = errors.New("unparseable listing entry")

// Entry is one listing row before item parsing: its title plus any attached fields
type Entry struct {
	Title  string
	Fields map[string]string
}

// Page is the content of one listing page
type Page struct {
	Index   int
	URL     string
	Entries []Entry

	// NoMorePages is the source's own "last page" signal. It ends enumeration early and is not an error.
	NoMorePages bool
}

// Lister reads one page of a listing source.
// HTML listers drive the session; feed and file listers ignore it.
type Lister interface {
	Name() string
	ListPage(ctx context.Context, session browser.Session, index int) (Page, error)
}

// ItemParser turns a listing entry into a RawItem, or fails with ErrUnparseable
type ItemParser func(entry Entry) (domain.RawItem, error)
