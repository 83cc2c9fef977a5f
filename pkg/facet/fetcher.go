package facet

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matst80/slask-discovery/pkg/api"
	"github.com/matst80/slask-discovery/pkg/cache"
	"github.com/matst80/slask-discovery/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	facetQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_facet_queries_total",
		Help: "The total number of facet queries started",
	})
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_facet_cache_hits_total",
		Help: "The total number of search api responses served from cache",
	})
	sharedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_facet_shared_requests_total",
		Help: "The total number of search api requests joined to an in-flight call",
	})
)

const (
	DefaultFacetSize      = 1000
	DefaultRequestTimeout = 20 * time.Second
)

// Searcher is the search api as seen by the fetcher.
type Searcher interface {
	Query(ctx context.Context, req api.Request) (*api.Response, error)
}

// Params selects the facets to load for a search.
type Params struct {
	Query     string
	Facets    []string
	FacetSize int
	Selection query.Selection
}

// BaselineKey identifies the unfiltered facet data.
func (p Params) BaselineKey() string {
	return fmt.Sprintf("%s|%d|%s", p.Query, p.FacetSize, strings.Join(p.Facets, ","))
}

// Key identifies the facet data for the current selection.
func (p Params) Key() string {
	filters, _ := p.Selection.Encode()
	return p.BaselineKey() + "|" + filters
}

// Result is the observable state of a facet query.
type Result struct {
	Data       Collection `json:"facets"`
	Err        error      `json:"-"`
	IsLoading  bool       `json:"loading"`
	IsUpdating bool       `json:"updating"`
}

// Fetcher loads facet terms in two phases: a baseline without filters that
// decides which terms are listed, and an update with the selection applied
// that only refreshes counts. Identical api requests share one in-flight call
// and a cached response.
type Fetcher struct {
	Searcher       Searcher
	Expiration     time.Duration
	RequestTimeout time.Duration
	DateFacets     []string
	Format         Formatter
	cache          *cache.Helper[api.Response]
	group          singleflight.Group
}

func NewFetcher(searcher Searcher, store cache.Store) *Fetcher {
	return &Fetcher{
		Searcher:       searcher,
		Expiration:     5 * time.Minute,
		RequestTimeout: DefaultRequestTimeout,
		DateFacets:     []string{DateFacet},
		Format:         DefaultFormatter,
		cache:          cache.NewHelper[api.Response](store),
	}
}

// Query starts both phases concurrently and returns immediately.
func (f *Fetcher) Query(ctx context.Context, p Params) *FacetQuery {
	facetQueries.Inc()
	q := &FacetQuery{
		Params:        p,
		chronological: f.dateFacets(p.Facets),
		loading:       true,
		updating:      !p.Selection.IsEmpty(),
		changes:       make(chan struct{}, 2),
		done:          make(chan struct{}),
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		data, err := f.Baseline(ctx, p)
		q.mu.Lock()
		q.baseline, q.baseErr, q.loading = data, err, false
		q.mu.Unlock()
		q.changed()
	}()
	if q.updating {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := f.Updated(ctx, p)
			q.mu.Lock()
			q.updated, q.updErr, q.updating = data, err, false
			q.mu.Unlock()
			q.changed()
		}()
	}
	go func() {
		wg.Wait()
		close(q.done)
	}()
	return q
}

// Baseline loads the terms of every facet without any filter applied.
func (f *Fetcher) Baseline(ctx context.Context, p Params) (Collection, error) {
	return f.load(ctx, p, map[string][]string{"": p.Facets})
}

// Updated loads the counts of every facet with the selection applied. The
// selection of a facet itself is left out of its own extra filter.
func (f *Fetcher) Updated(ctx context.Context, p Params) (Collection, error) {
	groups := make(map[string][]string)
	for _, facet := range p.Facets {
		extra, _ := p.Selection.WithOut(facet).Encode()
		groups[extra] = append(groups[extra], facet)
	}
	return f.load(ctx, p, groups)
}

func (f *Fetcher) dateFacets(facets []string) []string {
	result := make([]string, 0)
	for _, facet := range facets {
		if slices.Contains(f.DateFacets, facet) {
			result = append(result, facet)
		}
	}
	return result
}

func (f *Fetcher) format() Formatter {
	if f.Format == nil {
		return DefaultFormatter
	}
	return f.Format
}

func (f *Fetcher) facetSize(p Params) int {
	if p.FacetSize <= 0 {
		return DefaultFacetSize
	}
	return p.FacetSize
}

// load runs one terms request per extra filter, one date histogram request
// per date facet and one missing probe per facet.
func (f *Fetcher) load(ctx context.Context, p Params, groups map[string][]string) (Collection, error) {
	format := f.format()
	size := f.facetSize(p)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	terms := make(Collection, len(p.Facets))
	missing := make(map[string]int, len(p.Facets))

	for extra, facets := range groups {
		dates := f.dateFacets(facets)
		plain := slices.DeleteFunc(slices.Clone(facets), func(facet string) bool {
			return slices.Contains(dates, facet)
		})
		if len(plain) > 0 {
			g.Go(func() error {
				resp, err := f.search(gctx, api.NewFacetRequest(p.Query, extra, plain, size))
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for _, facet := range plain {
					terms[facet] = FromResult(facet, resp.Facets[facet], format)
				}
				return nil
			})
		}
		for _, facet := range dates {
			g.Go(func() error {
				req := api.NewFacetRequest(p.Query, extra, []string{facet}, size)
				req.Hist = DateFacet
				resp, err := f.search(gctx, req)
				if err != nil {
					return err
				}
				list := AggregateDatesByYear(FromResult(facet, resp.Facets[facet], format))
				mu.Lock()
				terms[facet] = list
				mu.Unlock()
				return nil
			})
		}
		for _, facet := range facets {
			g.Go(func() error {
				req := api.NewFacetRequest(api.MissingQuery(p.Query, facet), extra, nil, 0)
				resp, err := f.search(gctx, req)
				if err != nil {
					return err
				}
				mu.Lock()
				missing[facet] = resp.Total
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(Collection, len(p.Facets))
	for _, facet := range p.Facets {
		list := terms[facet]
		if list == nil {
			list = []Term{}
		}
		if count := missing[facet]; count > 0 {
			list = WithMissingFirst(facet, list, count, format)
		}
		if slices.Contains(f.DateFacets, facet) {
			SortChronological(list)
		} else {
			SortByCount(list)
		}
		result[facet] = list
	}
	return result, nil
}

func (f *Fetcher) requestTimeout() time.Duration {
	if f.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return f.RequestTimeout
}

// search runs req once for all concurrent callers. The shared call is detached
// from the caller that started it and bounded by RequestTimeout. Each caller
// returns as soon as its own ctx is done.
func (f *Fetcher) search(ctx context.Context, req api.Request) (*api.Response, error) {
	key := req.CacheKey()
	ch := f.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.requestTimeout())
		defer cancel()
		var resp api.Response
		hit, err := f.cache.Handle(callCtx, key, &resp, func(ctx context.Context) (api.Response, error) {
			r, err := f.Searcher.Query(ctx, req)
			if err != nil {
				return api.Response{}, err
			}
			return *r, nil
		}, f.Expiration)
		if err != nil {
			log.Printf("facet request failed: %v", err)
			return nil, err
		}
		if hit {
			cacheHits.Inc()
		}
		return &resp, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			sharedRequests.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*api.Response), nil
	}
}

// FacetQuery tracks the two phases of one facet query.
type FacetQuery struct {
	Params        Params
	chronological []string
	mu            sync.Mutex
	baseline      Collection
	updated       Collection
	baseErr       error
	updErr        error
	loading       bool
	updating      bool
	changes       chan struct{}
	done          chan struct{}
}

// Snapshot returns the current state. Updated counts are only applied once
// the baseline has arrived; before that the update is held back.
func (q *FacetQuery) Snapshot() Result {
	q.mu.Lock()
	defer q.mu.Unlock()
	r := Result{
		IsLoading:  q.loading,
		IsUpdating: q.updating,
		Err:        q.baseErr,
	}
	if r.Err == nil {
		r.Err = q.updErr
	}
	switch {
	case q.baseline == nil:
	case q.updated != nil:
		r.Data = Reconcile(q.baseline, q.updated, q.chronological...)
	default:
		r.Data = q.baseline.Clone()
	}
	return r
}

// Changes receives a value each time a phase settles.
func (q *FacetQuery) Changes() <-chan struct{} {
	return q.changes
}

func (q *FacetQuery) changed() {
	select {
	case q.changes <- struct{}{}:
	default:
	}
}

// Done is closed when both phases have settled.
func (q *FacetQuery) Done() <-chan struct{} {
	return q.done
}

// Wait blocks until both phases settled or ctx is done and returns the snapshot.
func (q *FacetQuery) Wait(ctx context.Context) Result {
	select {
	case <-q.done:
	case <-ctx.Done():
	}
	return q.Snapshot()
}
