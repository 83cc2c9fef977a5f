package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/matst80/slask-discovery/pkg/api"
	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
	"github.com/matst80/slask-discovery/pkg/facet"
	"github.com/matst80/slask-discovery/pkg/query"
	"github.com/matst80/slask-discovery/pkg/tracking"
)

type fakeSearcher struct {
	fail bool
}

func facetResponse(facet string, pairs ...any) *api.Response {
	res := api.FacetResult{}
	for i := 0; i < len(pairs); i += 2 {
		res.Terms = append(res.Terms, api.FacetTerm{Term: pairs[i].(string), Count: pairs[i+1].(int)})
	}
	return &api.Response{Facets: map[string]api.FacetResult{facet: res}}
}

func (f *fakeSearcher) Query(_ context.Context, req api.Request) (*api.Response, error) {
	if f.fail {
		return nil, &api.StatusError{StatusCode: http.StatusServiceUnavailable}
	}
	switch {
	case strings.Contains(req.Query, query.ExistsKey):
		return &api.Response{Total: 1}, nil
	case req.Hist == facet.DateFacet:
		return facetResponse(facet.DateFacet, "2019-03-01", 3, "2021-06-01", 1), nil
	case req.ExtraFilter == "":
		return facetResponse("keywords", "covid", 8, "flu", 3), nil
	}
	return facetResponse("keywords", "flu", 2), nil
}

type recordingTracker struct {
	mu       sync.Mutex
	searches []tracking.SearchEvent
}

func (t *recordingTracker) TrackSession(sessionId int, r *http.Request) {}

func (t *recordingTracker) TrackSearch(sessionId int, search tracking.SearchEvent, r *http.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.searches = append(t.searches, search)
}

func testServer(searcher facet.Searcher) *WebServer {
	return NewWebServer(facet.NewFetcher(searcher, nil), "@type", "keywords", "date")
}

func serve(ws *WebServer, method, target string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.Header.Set("Origin", "https://portal.example")
	w := httptest.NewRecorder()
	ws.ClientHandler().ServeHTTP(w, r)
	return w
}

type termJson struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type facetsJson struct {
	Facets   map[string][]termJson `json:"facets"`
	Filters  *string               `json:"filters"`
	Error    string                `json:"error"`
	Loading  bool                  `json:"loading"`
	Updating bool                  `json:"updating"`
}

func TestGetFacets(t *testing.T) {
	trk := &recordingTracker{}
	ws := testServer(&fakeSearcher{})
	ws.Tracking = trk
	target := "/api/facets?q=covid&facets=keywords&filters=" + url.QueryEscape(`(@type:("dataset"))`)
	w := serve(ws, http.MethodGet, target, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://portal.example" {
		t.Errorf("Expected cors header, got %v", w.Header())
	}
	res := facetsJson{}
	if err := jsoncompat.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Loading || res.Updating || res.Error != "" {
		t.Errorf("Expected settled result, got %+v", res)
	}
	if res.Filters == nil || *res.Filters != `(@type:("Dataset"))` {
		t.Errorf("Expected normalized filters, got %v", res.Filters)
	}
	terms := res.Facets["keywords"]
	if len(terms) != 3 {
		t.Fatalf("Expected missing term and two keywords, got %v", terms)
	}
	if terms[0].Term != query.ExistsKey || terms[1].Term != "flu" || terms[1].Count != 2 || terms[2].Term != "covid" || terms[2].Count != 0 {
		t.Errorf("Unexpected term order %v", terms)
	}
	if len(trk.searches) != 1 || trk.searches[0].Query != "covid" || trk.searches[0].Failed {
		t.Errorf("Expected one tracked search, got %+v", trk.searches)
	}
	if len(w.Result().Cookies()) == 0 {
		t.Errorf("Expected a session cookie")
	}
}

func TestGetFacetsError(t *testing.T) {
	ws := testServer(&fakeSearcher{fail: true})
	w := serve(ws, http.MethodGet, "/api/facets?facets=keywords", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", w.Code)
	}
	res := facetsJson{}
	if err := jsoncompat.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Error == "" || res.Filters != nil {
		t.Errorf("Expected error and null filters, got %+v", res)
	}
}

func TestStreamFacets(t *testing.T) {
	ws := testServer(&fakeSearcher{})
	w := serve(ws, http.MethodGet, "/api/facets/stream?facets=keywords&filters="+url.QueryEscape(`(keywords:("flu"))`), "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var lines []facetsJson
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		res := facetsJson{}
		if err := jsoncompat.Unmarshal(scanner.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		lines = append(lines, res)
	}
	if len(lines) < 2 {
		t.Fatalf("Expected at least two lines, got %d", len(lines))
	}
	last := lines[len(lines)-1]
	if last.Loading || last.Updating || len(last.Facets["keywords"]) != 3 {
		t.Errorf("Expected settled last line, got %+v", last)
	}
}

func TestGetDates(t *testing.T) {
	ws := testServer(&fakeSearcher{})
	w := serve(ws, http.MethodGet, "/api/dates?q=covid", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	res := struct {
		Years []termJson `json:"years"`
	}{}
	if err := jsoncompat.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	expected := []termJson{{query.ExistsKey, 1}, {"2019", 3}, {"2020", 0}, {"2021", 1}}
	if len(res.Years) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, res.Years)
	}
	for i, y := range expected {
		if res.Years[i] != y {
			t.Errorf("Expected %v at %d, got %v", y, i, res.Years[i])
		}
	}
}

func TestDecodeFilters(t *testing.T) {
	ws := testServer(&fakeSearcher{})
	filters := `(@type:("dataset" OR "computationaltool")) AND (date:(-_exists_:("date")))`
	w := serve(ws, http.MethodGet, "/api/filters/decode?filters="+url.QueryEscape(filters), "")
	res := struct {
		Selection query.Selection `json:"selection"`
		Filters   *string         `json:"filters"`
	}{}
	if err := jsoncompat.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Selection.Contains("date", query.Missing("date")) || len(res.Selection["@type"]) != 2 {
		t.Errorf("Unexpected selection %v", res.Selection)
	}
	expected := `(@type:("Dataset" OR "ComputationalTool")) AND (date:(-_exists_:("date")))`
	if res.Filters == nil || *res.Filters != expected {
		t.Errorf("Expected %s, got %v", expected, res.Filters)
	}
}

func TestEncodeFilters(t *testing.T) {
	ws := testServer(&fakeSearcher{})
	w := serve(ws, http.MethodPost, "/api/filters/encode", `{"keywords":["covid"],"date":[]}`)
	if strings.TrimSpace(w.Body.String()) != `{"filters":"(keywords:(\"covid\"))"}` {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
	w = serve(ws, http.MethodPost, "/api/filters/encode", `{"keywords":[]}`)
	if strings.TrimSpace(w.Body.String()) != `{"filters":null}` {
		t.Errorf("Expected null filters, got %s", w.Body.String())
	}
	w = serve(ws, http.MethodPost, "/api/filters/encode", `{"keywords":[{"other":1}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected bad request, got %d", w.Code)
	}
}

func TestFilterAction(t *testing.T) {
	ws := testServer(&fakeSearcher{})
	res := FilterStateResponse{}
	target := "/api/filters/action/toggle?q=flu&from=3&facet=@type&value=dataset&filters=" + url.QueryEscape(`(keywords:("covid"))`)
	w := serve(ws, http.MethodGet, target, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := jsoncompat.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	expected := `(@type:("Dataset")) AND (keywords:("covid"))`
	if res.Params.Filters != expected || res.Params.From != 1 || res.Params.Query != "flu" {
		t.Errorf("Unexpected params %+v", res.Params)
	}
	next, err := url.ParseQuery(res.Search)
	if err != nil || next.Get("filters") != expected {
		t.Errorf("Expected search to carry the filters, got %s", res.Search)
	}

	w = serve(ws, http.MethodGet, "/api/filters/action/clear?filters="+url.QueryEscape(expected), "")
	res = FilterStateResponse{}
	if err := jsoncompat.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Params.Filters != "" || !res.Selection.IsEmpty() {
		t.Errorf("Expected cleared filters, got %+v", res)
	}
}

func TestFilterActionErrors(t *testing.T) {
	ws := testServer(&fakeSearcher{})
	if w := serve(ws, http.MethodGet, "/api/filters/action/toggle?value=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected bad request without facet, got %d", w.Code)
	}
	if w := serve(ws, http.MethodGet, "/api/filters/action/flip?facet=keywords", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected not found for unknown action, got %d", w.Code)
	}
}

func TestOptions(t *testing.T) {
	ws := testServer(&fakeSearcher{})
	w := serve(ws, http.MethodOptions, "/api/facets", "")
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected 202 for preflight, got %d", w.Code)
	}
}
