package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"screenlist/pkg/domain"
)

// ErrNotConnected is returned when a client is used before Connect
var ErrNotConnected = errors.New("database not connected")

// EnsureSchema creates the record table if it does not exist
func EnsureSchema(ctx context.Context, s SQLStore) error {
	if s.DB() == nil {
		return ErrNotConnected
	}
	if _, err := s.DB().ExecContext(ctx, s.Dialect().Schema()); err != nil {
		return fmt.Errorf("create %s table: %w", RecordsTable, err)
	}
	return nil
}

// UpsertRecords writes records in one transaction, replacing rows whose key already exists
func UpsertRecords(ctx context.Context, s SQLStore, records []domain.EnrichmentRecord) error {
	_, err := execRecordsTx(ctx, s, s.Dialect().UpsertQuery(), records)
	return err
}

// InsertNewRecords writes records in one transaction, skipping keys that already exist.
// It returns the number of rows actually inserted.
func InsertNewRecords(ctx context.Context, s SQLStore, records []domain.EnrichmentRecord) (int, error) {
	return execRecordsTx(ctx, s, s.Dialect().InsertNewQuery(), records)
}

// LoadRecords reads every row of the record table
func LoadRecords(ctx context.Context, s SQLStore) ([]domain.EnrichmentRecord, error) {
	if s.DB() == nil {
		return nil, ErrNotConnected
	}

	rows, err := s.DB().QueryContext(ctx, s.Dialect().SelectAllQuery())
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []domain.EnrichmentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// ExistingKeys returns which of keys are already stored
func ExistingKeys(ctx context.Context, s SQLStore, keys []string) (map[string]bool, error) {
	if s.DB() == nil {
		return nil, ErrNotConnected
	}
	set := make(map[string]bool)
	if len(keys) == 0 {
		return set, nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.DB().QueryContext(ctx, s.Dialect().KeysInQuery(len(keys)), args...)
	if err != nil {
		return nil, fmt.Errorf("query existing keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		set[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return set, nil
}

func execRecordsTx(ctx context.Context, s SQLStore, query string, records []domain.EnrichmentRecord) (int, error) {
	if s.DB() == nil {
		return 0, ErrNotConnected
	}

	tx, err := s.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	affected := 0
	for _, rec := range records {
		if rec.Key == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, recordArgs(s.Dialect(), rec)...)
		if err != nil {
			return 0, fmt.Errorf("write record key=%q: %w", rec.Key, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return affected, nil
}

func recordArgs(d Dialect, rec domain.EnrichmentRecord) []any {
	var rating any
	if rec.Rating != nil {
		rating = *rec.Rating
	}
	return []any{
		string(rec.Key),
		rec.DisplayName,
		rec.Year,
		rating,
		nullString(rec.Genre),
		nullString(rec.Duration),
		nullString(rec.Description),
		rec.DetailURL,
		d.timeArg(rec.ResolvedAt),
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func scanRecord(rows *sql.Rows) (domain.EnrichmentRecord, error) {
	var (
		key, name, year, detail string
		rating                  sql.NullFloat64
		genre, duration, desc   sql.NullString
		resolved                any
	)
	if err := rows.Scan(&key, &name, &year, &rating, &genre, &duration, &desc, &detail, &resolved); err != nil {
		return domain.EnrichmentRecord{}, fmt.Errorf("scan record: %w", err)
	}

	resolvedAt, err := parseTime(resolved)
	if err != nil {
		return domain.EnrichmentRecord{}, fmt.Errorf("record key=%q: %w", key, err)
	}

	rec := domain.EnrichmentRecord{
		Key:         domain.CanonicalKey(key),
		DisplayName: name,
		Year:        year,
		DetailURL:   detail,
		ResolvedAt:  resolvedAt,
	}
	if rating.Valid {
		v := rating.Float64
		rec.Rating = &v
	}
	if genre.Valid {
		rec.Genre = &genre.String
	}
	if duration.Valid {
		rec.Duration = &duration.String
	}
	if desc.Valid {
		rec.Description = &desc.String
	}
	return rec, nil
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimeText(t)
	case []byte:
		return parseTimeText(string(t))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected resolved_at type %T", v)
	}
}

func parseTimeText(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse resolved_at %q: %w", s, err)
	}
	return t.UTC(), nil
}
