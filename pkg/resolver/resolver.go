package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"screenlist/pkg/browser"
	"screenlist/pkg/content"
	"screenlist/pkg/domain"
	"screenlist/pkg/identity"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("screenlist/resolver")

var (
	// ErrNoCandidates is returned by Lookup when the search page lists nothing
	ErrNoCandidates = errors.New("no search candidates")
	// ErrMissingName is returned by Fetch when the detail page has no name
	ErrMissingName = errors.New("detail page has no name")
)

const urlFlags = purell.FlagsSafe | purell.FlagRemoveDotSegments | purell.FlagRemoveDuplicateSlashes | purell.FlagRemoveFragment

var (
	yearRe  = regexp.MustCompile(`\d{4}`)
	floatRe = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?`)
)

// Resolver looks items up on a detail source and reads their records.
// It drives a single session and is not safe for concurrent use.
type Resolver struct {
	session  browser.Session
	profile  Profile
	maxWait  time.Duration
	now      func() time.Time
	excerpts content.Extractor
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock sets the clock used for ResolvedAt
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithExtractor sets the description fallback extractor
func WithExtractor(e content.Extractor) Option {
	return func(r *Resolver) { r.excerpts = e }
}

// New creates a resolver. maxWait bounds every navigation and wait.
func New(session browser.Session, profile Profile, maxWait time.Duration, opts ...Option) *Resolver {
	r := &Resolver{
		session:  session,
		profile:  profile,
		maxWait:  maxWait,
		now:      time.Now,
		excerpts: content.NewDefaultExtractor(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Profile returns the resolver's profile
func (r *Resolver) Profile() Profile {
	return r.profile
}

// Resolve runs lookup then fetch for one item. It never fails: every problem,
// including a panic in extraction, becomes an Unresolved value.
func (r *Resolver) Resolve(ctx context.Context, item domain.RawItem) (res domain.Resolution) {
	ctx, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()

	name := item.SearchName()
	span.SetAttributes(attribute.String("name", name), attribute.String("profile", r.profile.Name))

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic while resolving %q: %v", name, p)
			slog.Error("Resolver: recovered from panic", "title", item.Title, "error", err)
			res = domain.Unresolved(item, domain.ReasonFetchFailed, err)
		}
		if !res.OK() {
			span.SetAttributes(attribute.String("reason", string(res.Reason)))
			if res.Err != nil {
				span.RecordError(res.Err)
				span.SetStatus(codes.Error, res.Err.Error())
			}
		}
	}()

	detailURL, err := r.Lookup(ctx, name)
	if err != nil {
		reason := r.reasonFor(ctx, err, domain.ReasonLookupFailed)
		if reason == domain.ReasonNoCandidates {
			slog.Warn("Resolver: no search candidates", "title", item.Title, "name", name, "profile", r.profile.Name)
		} else {
			slog.Warn("Resolver: lookup failed", "title", item.Title, "name", name, "reason", reason, "error", err)
		}
		return domain.Unresolved(item, reason, err)
	}
	slog.Info("Resolver: found detail link", "name", name, "url", detailURL)

	record, err := r.Fetch(ctx, item, detailURL)
	if err != nil {
		reason := r.reasonFor(ctx, err, domain.ReasonFetchFailed)
		slog.Warn("Resolver: fetch failed", "title", item.Title, "url", detailURL, "reason", reason, "error", err)
		return domain.Unresolved(item, reason, err)
	}
	return domain.Resolved(item, record)
}

func (r *Resolver) reasonFor(ctx context.Context, err error, fallback domain.Reason) domain.Reason {
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		return domain.ReasonCanceled
	case errors.Is(err, ErrNoCandidates):
		return domain.ReasonNoCandidates
	case errors.Is(err, ErrMissingName):
		return domain.ReasonMissingName
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.ReasonTimeout
	}
	return fallback
}

// Lookup searches for name and returns the canonical URL of the first candidate
func (r *Resolver) Lookup(ctx context.Context, name string) (string, error) {
	ctx, span := tracer.Start(ctx, "Resolver.Lookup")
	defer span.End()

	searchURL := r.profile.SearchURL(name)
	span.SetAttributes(attribute.String("url", searchURL))
	slog.Debug("Resolver: searching", "name", name, "url", searchURL)

	if err := r.navigate(ctx, searchURL); err != nil {
		return "", fmt.Errorf("failed to open search page: %w", err)
	}
	if ready := r.profile.Search.Ready; ready != "" {
		if err := r.session.WaitFor(ctx, ready, r.maxWait); err != nil {
			// a results list that never appears is an empty result
			if errors.Is(err, browser.ErrTimeout) {
				return "", fmt.Errorf("%w: %v", ErrNoCandidates, err)
			}
			return "", fmt.Errorf("search page not ready: %w", err)
		}
	}

	doc, err := r.session.Document(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read search page: %w", err)
	}

	hrefs := browser.Extract(doc.Selection, r.profile.Search.Candidate)
	if len(hrefs) == 0 {
		return "", ErrNoCandidates
	}

	detailURL, err := canonicalURL(r.session.URL(), hrefs[0])
	if err != nil {
		return "", fmt.Errorf("failed to resolve candidate link %q: %w", hrefs[0], err)
	}
	return detailURL, nil
}

// Fetch opens the detail page and reads a record. Only the name is required.
func (r *Resolver) Fetch(ctx context.Context, item domain.RawItem, detailURL string) (domain.EnrichmentRecord, error) {
	ctx, span := tracer.Start(ctx, "Resolver.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", detailURL))

	if err := r.open(ctx, detailURL, r.profile.Detail.Ready); err != nil {
		return domain.EnrichmentRecord{}, fmt.Errorf("failed to open detail page: %w", err)
	}

	doc, err := r.session.Document(ctx)
	if err != nil {
		return domain.EnrichmentRecord{}, fmt.Errorf("failed to read detail page: %w", err)
	}
	root := doc.Selection
	spec := r.profile.Detail

	name := browser.ExtractString(root, spec.Name)
	if name == "" {
		return domain.EnrichmentRecord{}, ErrMissingName
	}

	record := domain.EnrichmentRecord{
		Key:         identity.KeyOf(item),
		DisplayName: name,
		Year:        yearRe.FindString(browser.ExtractString(root, spec.Year)),
		Rating:      parseRating(browser.Extract(root, spec.Rating)),
		Genre:       domain.StringPtr(browser.ExtractString(root, spec.Genre)),
		Duration:    domain.StringPtr(browser.ExtractString(root, spec.Duration)),
		Description: domain.StringPtr(browser.ExtractString(root, spec.Description)),
		DetailURL:   detailURL,
		ResolvedAt:  r.now().UTC(),
	}

	r.flagEmptyFields(item, record)

	if record.Description == nil {
		record.Description = r.fallbackDescription(doc, detailURL)
	}
	return record, nil
}

// flagEmptyFields logs one line per field that came back empty, so markup drift shows up per field
func (r *Resolver) flagEmptyFields(item domain.RawItem, record domain.EnrichmentRecord) {
	empty := map[string]bool{
		"year":        record.Year == "",
		"rating":      record.Rating == nil,
		"genre":       record.Genre == nil,
		"duration":    record.Duration == nil,
		"description": record.Description == nil,
	}
	for _, field := range []string{"year", "rating", "genre", "duration", "description"} {
		if empty[field] {
			slog.Warn("Resolver: field has no value", "field", field, "title", item.Title, "url", record.DetailURL)
		}
	}
}

func (r *Resolver) fallbackDescription(doc *goquery.Document, detailURL string) *string {
	if r.excerpts == nil {
		return nil
	}
	html, err := doc.Html()
	if err != nil {
		return nil
	}
	excerpt, err := r.excerpts.ExtractExcerpt(html)
	if err != nil {
		slog.Debug("Resolver: no description fallback", "url", detailURL, "error", err)
		return nil
	}
	return domain.StringPtr(excerpt)
}

// open navigates and waits for ready, each step bounded by maxWait
func (r *Resolver) open(ctx context.Context, pageURL, ready string) error {
	if err := r.navigate(ctx, pageURL); err != nil {
		return err
	}
	if ready == "" {
		return nil
	}
	return r.session.WaitFor(ctx, ready, r.maxWait)
}

// navigate opens pageURL; running past maxWait is reported as ErrTimeout
func (r *Resolver) navigate(ctx context.Context, pageURL string) error {
	gotoCtx, cancel := r.bounded(ctx)
	defer cancel()
	if err := r.session.Goto(gotoCtx, pageURL); err != nil {
		if gotoCtx.Err() != nil && ctx.Err() == nil {
			return fmt.Errorf("%w: navigation to %s: %v", browser.ErrTimeout, pageURL, err)
		}
		return err
	}
	return nil
}

func (r *Resolver) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.maxWait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.maxWait)
}

// canonicalURL resolves href against base, drops query and fragment and normalizes the result
func canonicalURL(base, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", err
		}
		ref = b.ResolveReference(ref)
	}
	if !ref.IsAbs() {
		return "", fmt.Errorf("link %q is not absolute", href)
	}
	ref.RawQuery = ""
	ref.ForceQuery = false
	ref.Fragment = ""
	return purell.NormalizeURL(ref, urlFlags), nil
}

// parseRating returns the first value that starts with a number
func parseRating(values []string) *float64 {
	for _, v := range values {
		m := floatRe.FindString(v)
		if m == "" {
			continue
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		return &f
	}
	return nil
}
