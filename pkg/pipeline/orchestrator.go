package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"screenlist/pkg/browser"
	"screenlist/pkg/cache"
	"screenlist/pkg/domain"
	"screenlist/pkg/filter"
	"screenlist/pkg/identity"
	"screenlist/pkg/render"
	"screenlist/pkg/sources"
	"screenlist/pkg/worker"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("screenlist/pipeline")

var (
	// ErrNoItems fails a run whose listing produced nothing
	ErrNoItems = errors.New("no items enumerated")
	// ErrSessionInit fails a run whose page session could not start
	ErrSessionInit = errors.New("page session could not start")
)

// Resolver resolves one item; failures are values, never errors
type Resolver interface {
	Resolve(ctx context.Context, item domain.RawItem) domain.Resolution
}

// ResolverFactory binds a resolver to the run's session
type ResolverFactory func(session browser.Session) Resolver

// Config wires one run
type Config struct {
	// Name identifies the preset in logs.
	Name string

	Sessions browser.Factory
	Lister   sources.Lister
	Parser   sources.ItemParser
	MaxPages int
	Resolver ResolverFactory

	Store   cache.Store
	Refresh bool

	Criteria filter.Criteria

	Renderer   *render.Renderer
	Metadata   render.Metadata
	OutputDir  string
	ReportName string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs the pipeline once
type Orchestrator struct {
	cfg     Config
	runID   string
	machine *Machine
	log     *slog.Logger
}

// NewOrchestrator creates an orchestrator for one run
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Parser == nil {
		cfg.Parser = sources.ParsePlain
	}
	runID := uuid.NewString()
	return &Orchestrator{
		cfg:     cfg,
		runID:   runID,
		machine: NewMachine(),
		log:     slog.With("run_id", runID, "preset", cfg.Name),
	}
}

// RunID returns the identifier attached to this run's logs
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes every stage in order. The returned Result is never nil and reflects
// how far the run got; the error is non-nil for fatal and render failures.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.Run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("preset", o.cfg.Name), attribute.String("run_id", o.runID)))
	defer span.End()
	if sc := span.SpanContext(); sc.IsValid() {
		o.log = o.log.With("trace_id", sc.TraceID().String())
	}

	res := &Result{RunID: o.runID, State: StateInit}
	err := o.run(ctx, res)
	res.State = o.machine.State()
	res.States = o.machine.History()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Error("Orchestrator: run failed", "state", res.State, "error", err)
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, res *Result) error {
	// INIT
	session, err := o.cfg.Sessions(ctx)
	if err != nil {
		return o.fail(fmt.Errorf("%w: %w", ErrSessionInit, err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.log.Warn("Orchestrator: failed to close session", "error", err)
		}
	}()

	loaded, err := o.cfg.Store.Load(ctx)
	if err != nil {
		res.CacheLoadErr = err
		o.log.Warn("Orchestrator: starting with an empty cache", "error", err)
	}
	if loaded == nil {
		loaded = domain.RecordSet{}
	}
	o.log.Info("Orchestrator: cache loaded", "records", len(loaded))

	// ENUMERATING
	if err := o.machine.To(StateEnumerating); err != nil {
		return err
	}
	enumerator := sources.NewEnumerator(o.cfg.Lister, o.cfg.Parser, session)
	items, stats, err := enumerator.Enumerate(ctx, o.cfg.MaxPages)
	res.Items = items
	res.EnumerationStats = stats
	if err != nil {
		return o.fail(fmt.Errorf("failed to enumerate listing: %w", err))
	}
	if len(items) == 0 {
		return o.fail(fmt.Errorf("%w from %s after %d pages", ErrNoItems, o.cfg.Lister.Name(), stats.PagesVisited))
	}

	// RESOLVING
	if err := o.machine.To(StateResolving); err != nil {
		return err
	}
	updates, err := o.resolveAll(ctx, session, items, loaded, res)
	if err != nil {
		return fmt.Errorf("resolution interrupted: %w", err)
	}

	res.CacheSaveErr = o.cfg.Store.Save(ctx, cache.Merge(loaded, updates))
	if res.CacheSaveErr != nil {
		o.log.Error("Orchestrator: failed to save cache, report is still produced", "error", res.CacheSaveErr)
	} else {
		o.log.Info("Orchestrator: cache saved", "new_records", len(updates))
	}

	// FILTERING
	if err := o.machine.To(StateFiltering); err != nil {
		return err
	}
	res.Selected, res.FilterStats = filter.Select(res.Resolved, o.cfg.Criteria)
	o.log.Info("Orchestrator: filtered",
		"input", res.FilterStats.Input,
		"kept", res.FilterStats.Kept,
		"excluded", res.FilterStats.Excluded)

	// RENDERING
	if err := o.machine.To(StateRendering); err != nil {
		return err
	}
	if err := o.renderReport(res); err != nil {
		return err
	}

	if len(res.Unresolved) > 0 {
		o.log.Warn("Orchestrator: unresolved items:\n" + res.UnresolvedBlock())
	}
	if len(res.Selected) == 0 {
		o.log.Info("Orchestrator: zero titles left after filtering")
	}

	return o.machine.To(StateDone)
}

// resolveAll resolves items in order, one at a time. Cached keys are reused unless Refresh is set.
// It returns the records resolved in this run.
func (o *Orchestrator) resolveAll(ctx context.Context, session browser.Session, items []domain.RawItem, loaded domain.RecordSet, res *Result) (domain.RecordSet, error) {
	resolver := o.cfg.Resolver(session)

	job := func(ctx context.Context, _ int, item domain.RawItem) (outcome, error) {
		if !o.cfg.Refresh {
			if rec, ok := loaded[identity.KeyOf(item)]; ok {
				o.log.Debug("Orchestrator: cached record", "title", item.Title, "url", rec.DetailURL)
				return outcome{Resolution: domain.Resolved(item, rec), cached: true}, nil
			}
		}
		r := resolver.Resolve(ctx, item)
		if !r.OK() {
			return outcome{Resolution: r}, fmt.Errorf("%s: %w", r.Reason, errOrReason(r))
		}
		return outcome{Resolution: r}, nil
	}

	o.log.Info("Orchestrator: resolving items", "items", len(items), "refresh", o.cfg.Refresh)
	results, tally, err := worker.NewRunner("resolve", job, 10).Run(ctx, items)
	res.ResolveTally = tally
	if err != nil {
		return nil, err
	}

	updates := domain.RecordSet{}
	for _, r := range results {
		out := r.Output
		if !out.OK() {
			res.Unresolved = append(res.Unresolved, out.AsUnresolved())
			continue
		}
		rec := *out.Record
		rec.Key = identity.KeyOf(out.Item)
		res.Resolved = append(res.Resolved, domain.Entry{Item: out.Item, Record: rec})
		if out.cached {
			res.FromCache++
			continue
		}
		updates[rec.Key] = rec
	}

	o.log.Info("Orchestrator: resolution finished",
		"resolved", len(res.Resolved),
		"from_cache", res.FromCache,
		"unresolved", len(res.Unresolved))
	return updates, nil
}

func (o *Orchestrator) renderReport(res *Result) error {
	renderer := o.cfg.Renderer
	if renderer == nil {
		var err error
		if renderer, err = render.NewRenderer(""); err != nil {
			return err
		}
	}

	meta := o.cfg.Metadata
	meta.LastUpdated = o.cfg.Now().UTC()

	body, err := renderer.Render(res.Selected, meta)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	name := o.cfg.ReportName
	if name == "" {
		name = o.cfg.Name + ".html"
	}
	if res.ReportPath, err = render.WriteReport(o.cfg.OutputDir, name, body); err != nil {
		return err
	}
	o.log.Info("Orchestrator: report written", "path", res.ReportPath, "entries", len(res.Selected))

	if meta.LastUpdatedFile == "" {
		return nil
	}
	marker, err := render.LastUpdatedMarker(meta)
	if err != nil {
		return err
	}
	if res.MarkerPath, err = render.WriteReport(o.cfg.OutputDir, filepath.Base(meta.LastUpdatedFile), marker); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) fail(err error) error {
	if terr := o.machine.To(StateFailed); terr != nil {
		return errors.Join(err, terr)
	}
	return err
}

// outcome is a resolution plus whether it came from the cache
type outcome struct {
	domain.Resolution
	cached bool
}

func errOrReason(r domain.Resolution) error {
	if r.Err != nil {
		return r.Err
	}
	return errors.New(string(r.Reason))
}
