package facet

import (
	"context"
	"sync"
)

// Tracker follows the facet query for the latest parameters. Results of a
// query that has been superseded are never returned, and the last complete
// data stays visible while a newer query is loading or has failed.
type Tracker struct {
	Fetcher *Fetcher
	mu      sync.Mutex
	current *FacetQuery
	last    Collection
}

func NewTracker(fetcher *Fetcher) *Tracker {
	return &Tracker{Fetcher: fetcher}
}

// Update starts a query for p unless p is what is already tracked.
func (t *Tracker) Update(ctx context.Context, p Params) *FacetQuery {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		if t.current.Params.Key() == p.Key() {
			return t.current
		}
		t.remember(t.current.Snapshot())
	}
	t.current = t.Fetcher.Query(ctx, p)
	return t.current
}

// Current returns the state of the latest query.
func (t *Tracker) Current() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Result{}
	}
	r := t.current.Snapshot()
	t.remember(r)
	if r.Data == nil && t.last != nil {
		r.Data = t.last.Clone()
	}
	return r
}

func (t *Tracker) remember(r Result) {
	if r.Data != nil && r.Err == nil && !r.IsLoading && !r.IsUpdating {
		t.last = r.Data
	}
}
