package cache

import (
	"context"
	"log/slog"

	"screenlist/pkg/domain"
)

// Mirror receives a copy of the cache after each successful save
type Mirror interface {
	Name() string
	SaveRecords(ctx context.Context, records []domain.EnrichmentRecord) error
}

// MirroredStore is a Store whose saves are copied to database mirrors.
// The file stays the source of truth; mirror failures are logged and never fail Save.
type MirroredStore struct {
	Store
	mirrors []Mirror
}

// NewMirroredStore wraps store with the given mirrors
func NewMirroredStore(store Store, mirrors ...Mirror) *MirroredStore {
	return &MirroredStore{Store: store, mirrors: mirrors}
}

// Save writes the primary store, then each mirror
func (s *MirroredStore) Save(ctx context.Context, records domain.RecordSet) error {
	if err := s.Store.Save(ctx, records); err != nil {
		return err
	}

	list := records.Records()
	for _, m := range s.mirrors {
		if err := m.SaveRecords(ctx, list); err != nil {
			slog.Warn("MirroredStore: mirror save failed", "mirror", m.Name(), "records", len(list), "error", err)
			continue
		}
		slog.Info("MirroredStore: mirrored records", "mirror", m.Name(), "records", len(list))
	}
	return nil
}
