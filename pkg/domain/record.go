package domain

import (
	"slices"
	"time"
)

// CanonicalKey is the normalized identity of a title, used for in-batch dedup and as the cache key
type CanonicalKey string

// EnrichmentRecord holds the detail data resolved for one title.
// A record is replaced whole when re-resolved, never patched field by field.
type EnrichmentRecord struct {
	Key         CanonicalKey `bson:"key" json:"key"`
	DisplayName string       `bson:"display_name" json:"displayName"`
	Year        string       `bson:"year,omitempty" json:"year,omitempty"`

	// Rating is nil when the detail page carried no parseable score.
	Rating      *float64 `bson:"rating,omitempty" json:"rating,omitempty"`
	Genre       *string  `bson:"genre,omitempty" json:"genre,omitempty"`
	Duration    *string  `bson:"duration,omitempty" json:"duration,omitempty"`
	Description *string  `bson:"description,omitempty" json:"description,omitempty"`

	DetailURL  string    `bson:"detail_url" json:"detailURL"`
	ResolvedAt time.Time `bson:"resolved_at" json:"resolvedAt"`
}

// RecordSet maps canonical keys to records. A key appears at most once.
type RecordSet map[CanonicalKey]EnrichmentRecord

// Records returns the records ordered by key
func (s RecordSet) Records() []EnrichmentRecord {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, string(k))
	}
	slices.Sort(keys)

	out := make([]EnrichmentRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, s[CanonicalKey(k)])
	}
	return out
}

// GenreOrEmpty returns the genre or "" when unknown
func (r EnrichmentRecord) GenreOrEmpty() string { return deref(r.Genre) }

// DurationOrEmpty returns the duration or "" when unknown
func (r EnrichmentRecord) DurationOrEmpty() string { return deref(r.Duration) }

// DescriptionOrEmpty returns the description or "" when unknown
func (r EnrichmentRecord) DescriptionOrEmpty() string { return deref(r.Description) }

// StringPtr returns nil for an empty string so optional fields stay absent in the cache
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
