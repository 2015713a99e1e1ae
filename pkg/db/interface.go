package db

import (
	"context"
	"database/sql"

	"screenlist/pkg/domain"
)

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows PostgresClient, SupabaseClient and SQLiteClient to be used interchangeably.
type DBProvider interface {
	DB() *sql.DB
}

// SQLStore is a DBProvider that also knows which SQL dialect it speaks
type SQLStore interface {
	DBProvider
	Dialect() Dialect
}

// RecordSource is anything that can hand back every stored record,
// used as the read side of replication
type RecordSource interface {
	GetAllRecords(ctx context.Context) ([]domain.EnrichmentRecord, error)
}
