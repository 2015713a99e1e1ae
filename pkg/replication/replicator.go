package replication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"screenlist/pkg/cache"
	"screenlist/pkg/db"
	"screenlist/pkg/domain"
)

const (
	defaultBatchSize = 100
	defaultWorkers   = 5
)

// Config wires the replication dependencies.
type Config struct {
	Source db.RecordSource
	Target db.SQLStore

	// Overwrite replaces rows that already exist in the target. By default they are skipped.
	Overwrite bool

	BatchSize int
	Workers   int
}

// Stats summarizes one replication run
type Stats struct {
	Processed int
	Inserted  int
}

// Replicator copies enrichment records from a source into a SQL database.
//
// This is a one-shot, "copy everything" flow.
type Replicator struct {
	source    db.RecordSource
	target    db.SQLStore
	overwrite bool
	batchSize int
	workers   int
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("record source is required")
	}
	if cfg.Target == nil {
		return nil, fmt.Errorf("target database is required")
	}
	r := &Replicator{
		source:    cfg.Source,
		target:    cfg.Target,
		overwrite: cfg.Overwrite,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.workers <= 0 {
		r.workers = defaultWorkers
	}
	return r, nil
}

// Replicate reads all records from the source and writes them to the target.
// Batches are processed in parallel and the first failing batch stops the run.
func (r *Replicator) Replicate(ctx context.Context) (Stats, error) {
	if err := db.EnsureSchema(ctx, r.target); err != nil {
		return Stats{}, err
	}

	records, err := r.source.GetAllRecords(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("read source records: %w", err)
	}

	slog.Info("Replicator: loaded records, processing in batches",
		"records", len(records), "batch_size", r.batchSize, "overwrite", r.overwrite)

	stats, err := r.processBatches(ctx, records)
	if err != nil {
		return stats, err
	}

	slog.Info("Replicator: replication complete", "processed", stats.Processed, "inserted", stats.Inserted)
	return stats, nil
}

// processBatches processes all records in batches in parallel and returns the totals.
func (r *Replicator) processBatches(ctx context.Context, records []domain.EnrichmentRecord) (Stats, error) {
	type batchJob struct {
		batch []domain.EnrichmentRecord
		start int
		end   int
	}

	type batchResult struct {
		processed int
		inserted  int
		err       error
	}

	numBatches := (len(records) + r.batchSize - 1) / r.batchSize
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, numBatches)

	for start := 0; start < len(records); start += r.batchSize {
		end := min(start+r.batchSize, len(records))
		jobs <- batchJob{batch: records[start:end], start: start, end: end}
	}
	close(jobs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- batchResult{err: ctx.Err()}
					continue
				}
				inserted, err := r.processBatch(ctx, job.batch, job.start, job.end)
				results <- batchResult{processed: len(job.batch), inserted: inserted, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				cancel()
			}
			continue
		}
		stats.Processed += result.processed
		stats.Inserted += result.inserted
		if stats.Processed%1000 == 0 {
			r.logProgress(stats, len(records))
		}
	}

	if firstErr != nil {
		return stats, firstErr
	}

	r.logProgress(stats, len(records))
	return stats, nil
}

// processBatch writes a single batch: checks existing keys, filters new ones, and inserts them.
func (r *Replicator) processBatch(ctx context.Context, batch []domain.EnrichmentRecord, start, end int) (int, error) {
	slog.Debug("Replicator: processing batch", "start", start, "end", end, "records", len(batch))

	if r.overwrite {
		if err := db.UpsertRecords(ctx, r.target, batch); err != nil {
			return 0, fmt.Errorf("upsert batch [%d:%d]: %w", start, end, err)
		}
		return len(batch), nil
	}

	existing, err := db.ExistingKeys(ctx, r.target, keysOf(batch))
	if err != nil {
		return 0, fmt.Errorf("check existing keys for batch [%d:%d]: %w", start, end, err)
	}

	toInsert := filterNewRecords(batch, existing)
	if len(toInsert) == 0 {
		slog.Debug("Replicator: no new records in batch", "start", start, "end", end)
		return 0, nil
	}

	inserted, err := db.InsertNewRecords(ctx, r.target, toInsert)
	if err != nil {
		return 0, fmt.Errorf("insert batch [%d:%d]: %w", start, end, err)
	}
	return inserted, nil
}

func (r *Replicator) logProgress(stats Stats, total int) {
	slog.Info("Replicator: progress", "processed", stats.Processed, "total", total, "inserted", stats.Inserted)
}

func keysOf(batch []domain.EnrichmentRecord) []string {
	keys := make([]string, 0, len(batch))
	for _, rec := range batch {
		if rec.Key != "" {
			keys = append(keys, string(rec.Key))
		}
	}
	return keys
}

func filterNewRecords(all []domain.EnrichmentRecord, existing map[string]bool) []domain.EnrichmentRecord {
	out := make([]domain.EnrichmentRecord, 0, len(all))
	for _, rec := range all {
		if rec.Key == "" || existing[string(rec.Key)] {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// CacheSource exposes a cache store as a replication source
type CacheSource struct {
	Store cache.Store
}

// GetAllRecords loads the cache. An unreadable cache is an error here, not a warning.
func (s CacheSource) GetAllRecords(ctx context.Context) ([]domain.EnrichmentRecord, error) {
	records, err := s.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return records.Records(), nil
}
