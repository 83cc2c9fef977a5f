package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/matst80/slask-discovery/pkg/common"
	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
	"github.com/matst80/slask-discovery/pkg/facet"
	"github.com/matst80/slask-discovery/pkg/query"
	"github.com/matst80/slask-discovery/pkg/state"
	"github.com/matst80/slask-discovery/pkg/tracking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	facetRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_facet_requests_total",
		Help: "The total number of facet requests handled",
	})
	facetErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_facet_request_errors_total",
		Help: "The total number of facet requests answered with an error",
	})
	filterActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_filter_actions_total",
		Help: "The total number of filter actions by kind",
	}, []string{"action"})
)

// WebServer exposes the facet fetcher and the filter codec over http.
type WebServer struct {
	Fetcher     *facet.Fetcher
	Facets      []string
	FacetSize   int
	WaitTimeout time.Duration
	Tracking    tracking.Tracking
}

func NewWebServer(fetcher *facet.Fetcher, facets ...string) *WebServer {
	return &WebServer{
		Fetcher:     fetcher,
		Facets:      slices.Clone(facets),
		FacetSize:   facet.DefaultFacetSize,
		WaitTimeout: 10 * time.Second,
	}
}

func (ws *WebServer) facetParams(fr *FacetRequest) facet.Params {
	facets := fr.Facets
	if len(facets) == 0 {
		facets = ws.Facets
	}
	size := fr.FacetSize
	if size <= 0 {
		size = ws.FacetSize
	}
	return facet.Params{
		Query:     fr.Query,
		Facets:    facets,
		FacetSize: size,
		Selection: fr.Selection,
	}
}

func (ws *WebServer) wait(ctx context.Context, p facet.Params) facet.Result {
	ctx, cancel := context.WithTimeout(ctx, ws.WaitTimeout)
	defer cancel()
	return ws.Fetcher.Query(ctx, p).Wait(ctx)
}

func (ws *WebServer) trackSearch(sessionId int, fr *FacetRequest, facets []string, err error, r *http.Request) {
	if ws.Tracking == nil {
		return
	}
	ws.Tracking.TrackSearch(sessionId, tracking.SearchEvent{
		Query:     fr.Query,
		Filters:   fr.Selection.String(),
		Selection: fr.Selection,
		Facets:    facets,
		Failed:    err != nil,
	}, r)
}

func (ws *WebServer) GetFacets(w http.ResponseWriter, r *http.Request, sessionId int, enc jsoncompat.Encoder) error {
	facetRequests.Inc()
	fr := &FacetRequest{}
	if err := GetFacetQueryFromRequest(r, fr); err != nil {
		return writeError(w, r, http.StatusBadRequest, err)
	}
	p := ws.facetParams(fr)
	result := ws.wait(r.Context(), p)
	ws.trackSearch(sessionId, fr, p.Facets, result.Err, r)

	status := http.StatusOK
	if result.Err != nil {
		facetErrors.Inc()
		if result.Data == nil {
			status = http.StatusBadGateway
		}
	}
	defaultHeaders(w, r, true, "60")
	w.WriteHeader(status)
	return enc.Encode(newFacetsResponse(result, fr.Selection))
}

// StreamFacets writes one json line per state of the query: the first line
// right away and one more each time a phase settles.
func (ws *WebServer) StreamFacets(w http.ResponseWriter, r *http.Request, sessionId int, enc jsoncompat.Encoder) error {
	facetRequests.Inc()
	fr := &FacetRequest{}
	if err := GetFacetQueryFromRequest(r, fr); err != nil {
		return writeError(w, r, http.StatusBadRequest, err)
	}
	p := ws.facetParams(fr)
	q := ws.Fetcher.Query(r.Context(), p)

	defaultHeaders(w, r, false, "0")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	write := func() error {
		err := enc.Encode(newFacetsResponse(q.Snapshot(), fr.Selection))
		if flusher != nil {
			flusher.Flush()
		}
		return err
	}
	if err := write(); err != nil {
		return err
	}
	for {
		select {
		case <-q.Changes():
			if err := write(); err != nil {
				return err
			}
		case <-q.Done():
			result := q.Snapshot()
			ws.trackSearch(sessionId, fr, p.Facets, result.Err, r)
			return write()
		case <-r.Context().Done():
			return r.Context().Err()
		}
	}
}

func (ws *WebServer) GetDates(w http.ResponseWriter, r *http.Request, sessionId int, enc jsoncompat.Encoder) error {
	fr := &FacetRequest{}
	if err := GetFacetQueryFromRequest(r, fr); err != nil {
		return writeError(w, r, http.StatusBadRequest, err)
	}
	fr.Facets = []string{facet.DateFacet}
	p := ws.facetParams(fr)
	result := ws.wait(r.Context(), p)

	ret := DatesResponse{
		Years:    result.Data[facet.DateFacet],
		Loading:  result.IsLoading,
		Updating: result.IsUpdating,
	}
	if ret.Years == nil {
		ret.Years = []facet.Term{}
	}
	status := http.StatusOK
	if result.Err != nil {
		ret.Error = result.Err.Error()
		if result.Data == nil {
			status = http.StatusBadGateway
		}
	}
	defaultHeaders(w, r, true, "60")
	w.WriteHeader(status)
	return enc.Encode(ret)
}

func (ws *WebServer) DecodeFilters(w http.ResponseWriter, r *http.Request, sessionId int, enc jsoncompat.Encoder) error {
	selection := query.DecodeValues(r.URL.Query()["filters"])
	publicHeaders(w, r, true, "3600")
	w.WriteHeader(http.StatusOK)
	return enc.Encode(FiltersResponse{
		Selection: selection,
		Filters:   encodedFilters(selection),
	})
}

func (ws *WebServer) EncodeFilters(w http.ResponseWriter, r *http.Request, sessionId int, enc jsoncompat.Encoder) error {
	selection := query.Selection{}
	if err := jsoncompat.NewDecoder(r.Body).Decode(&selection); err != nil {
		return writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid selection: %w", err))
	}
	genericHeaders(w, r, true)
	w.WriteHeader(http.StatusOK)
	return enc.Encode(FiltersResponse{
		Filters: encodedFilters(selection),
	})
}

var errMissingFacet = errors.New("facet is required")

// FilterAction applies select, deselect, toggle, remove or clear to the
// filters of the page described by the query string and returns the state
// the page should navigate to.
func (ws *WebServer) FilterAction(w http.ResponseWriter, r *http.Request, sessionId int, enc jsoncompat.Encoder) error {
	action := r.PathValue("action")
	values := r.URL.Query()
	fa := FilterAction{}
	if err := decoder.Decode(&fa, values); err != nil {
		return writeError(w, r, http.StatusBadRequest, err)
	}
	if fa.Facet == "" && action != "clear" {
		return writeError(w, r, http.StatusBadRequest, errMissingFacet)
	}

	nav := &state.Recorder{}
	c := state.NewContainer(nav, ws.Facets...)
	c.Sync(values)

	ctx := r.Context()
	var err error
	switch action {
	case "select":
		err = c.Select(ctx, fa.Facet, fa.FilterValue())
	case "deselect":
		err = c.Deselect(ctx, fa.Facet, fa.FilterValue())
	case "toggle":
		err = c.Toggle(ctx, fa.Facet, fa.FilterValue())
	case "remove":
		err = c.Remove(ctx, fa.Facet)
	case "clear":
		err = c.Clear(ctx)
	default:
		return writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown filter action %q", action))
	}
	if err != nil {
		return writeError(w, r, http.StatusInternalServerError, err)
	}
	filterActions.WithLabelValues(action).Inc()

	next, _ := nav.Last()
	genericHeaders(w, r, true)
	w.WriteHeader(http.StatusOK)
	return enc.Encode(FilterStateResponse{
		Params:    c.Params(),
		Selection: c.Selection(),
		Search:    next.Encode(),
	})
}

func (ws *WebServer) Handle(srv *http.ServeMux, pattern string, fn func(w http.ResponseWriter, r *http.Request, sessionId int, enc jsoncompat.Encoder) error) {
	var trk common.SessionTracker
	if ws.Tracking != nil {
		trk = ws.Tracking
	}
	srv.HandleFunc(pattern, common.JsonHandler(trk, fn))
}

func (ws *WebServer) ClientHandler() *http.ServeMux {
	srv := http.NewServeMux()

	srv.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		genericHeaders(w, r, false)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	ws.Handle(srv, "/api/facets", ws.GetFacets)
	ws.Handle(srv, "/api/facets/stream", ws.StreamFacets)
	ws.Handle(srv, "/api/dates", ws.GetDates)
	ws.Handle(srv, "/api/filters/decode", ws.DecodeFilters)
	ws.Handle(srv, "/api/filters/encode", ws.EncodeFilters)
	ws.Handle(srv, "/api/filters/action/{action}", ws.FilterAction)

	return srv
}
