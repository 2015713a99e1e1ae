package db

import (
	"fmt"
	"strings"
	"time"
)

// Dialect selects placeholder style and column types for the record table
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// RecordsTable holds one row per canonical key
const RecordsTable = "enrichment_record"

var recordColumns = []string{
	"record_key",
	"display_name",
	"year",
	"rating",
	"genre",
	"duration",
	"description",
	"detail_url",
	"resolved_at",
}

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// Placeholder returns the n-th (1-based) bind parameter
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// Schema returns the CREATE TABLE statement for the record table
func (d Dialect) Schema() string {
	ratingType, timeType, timeDefault := "DOUBLE PRECISION", "TIMESTAMPTZ", "now()"
	if d == SQLite {
		// resolved_at is stored as RFC 3339 text
		ratingType, timeType, timeDefault = "REAL", "TEXT", "''"
	}
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  record_key TEXT PRIMARY KEY,
  display_name TEXT NOT NULL DEFAULT '',
  year TEXT NOT NULL DEFAULT '',
  rating %s,
  genre TEXT,
  duration TEXT,
  description TEXT,
  detail_url TEXT NOT NULL DEFAULT '',
  resolved_at %s NOT NULL DEFAULT %s
);`, RecordsTable, ratingType, timeType, timeDefault)
}

// UpsertQuery replaces the whole row on key conflict
func (d Dialect) UpsertQuery() string {
	updates := make([]string, 0, len(recordColumns)-1)
	for _, col := range recordColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return d.insertPrefix() + " ON CONFLICT (record_key) DO UPDATE SET " + strings.Join(updates, ", ")
}

// InsertNewQuery leaves existing rows untouched
func (d Dialect) InsertNewQuery() string {
	return d.insertPrefix() + " ON CONFLICT (record_key) DO NOTHING"
}

// SelectAllQuery reads every record ordered by key
func (d Dialect) SelectAllQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY record_key", strings.Join(recordColumns, ", "), RecordsTable)
}

// KeysInQuery builds "SELECT record_key ... WHERE record_key IN (...)" for n keys
func (d Dialect) KeysInQuery(n int) string {
	params := make([]string, n)
	for i := range params {
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("SELECT record_key FROM %s WHERE record_key IN (%s)", RecordsTable, strings.Join(params, ", "))
}

func (d Dialect) insertPrefix() string {
	params := make([]string, len(recordColumns))
	for i := range params {
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		RecordsTable, strings.Join(recordColumns, ", "), strings.Join(params, ", "))
}

func (d Dialect) timeArg(t time.Time) any {
	if d == SQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}
