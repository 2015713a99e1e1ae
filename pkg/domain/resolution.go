package domain

// Reason explains why an item could not be resolved
type Reason string

const (
	ReasonNoCandidates Reason = "no-candidates"
	ReasonLookupFailed Reason = "lookup-failed"
	ReasonFetchFailed  Reason = "fetch-failed"
	ReasonMissingName  Reason = "missing-name"
	ReasonTimeout      Reason = "timeout"
	ReasonCanceled     Reason = "canceled"
)

// Resolution is the per-item outcome of the detail resolver.
// Exactly one of Record (resolved) or Reason (unresolved) is set.
type Resolution struct {
	Item   RawItem
	Record *EnrichmentRecord
	Reason Reason
	Err    error
}

// Resolved builds a successful resolution
func Resolved(item RawItem, record EnrichmentRecord) Resolution {
	return Resolution{Item: item, Record: &record}
}

// Unresolved builds a failed resolution
func Unresolved(item RawItem, reason Reason, err error) Resolution {
	return Resolution{Item: item, Reason: reason, Err: err}
}

// OK reports whether the item was resolved
func (r Resolution) OK() bool { return r.Record != nil }

// UnresolvedItem is an item that produced no record. It is reported, never rendered.
type UnresolvedItem struct {
	Item   RawItem
	Reason Reason
	Detail string
}

// AsUnresolved converts a failed resolution into its report form
func (r Resolution) AsUnresolved() UnresolvedItem {
	detail := ""
	if r.Err != nil {
		detail = r.Err.Error()
	}
	return UnresolvedItem{Item: r.Item, Reason: r.Reason, Detail: detail}
}
