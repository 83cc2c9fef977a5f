package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/matst80/slask-discovery/pkg/query"
)

func TestParseFacetQueryValues(t *testing.T) {
	target := "/api/facets?q=covid&facets=keywords,date&facets=@type&facet_size=25&filters=" + url.QueryEscape(`(@type:("dataset"))`)
	r := httptest.NewRequest(http.MethodGet, target, nil)
	fr := &FacetRequest{}
	if err := GetFacetQueryFromRequest(r, fr); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fr.Query != "covid" {
		t.Errorf("Expected query to be covid, got %v", fr.Query)
	}
	if !slices.Equal(fr.Facets, []string{"keywords", "date", "@type"}) {
		t.Errorf("Expected facets to be split, got %v", fr.Facets)
	}
	if fr.FacetSize != 25 {
		t.Errorf("Expected facet size to be 25, got %v", fr.FacetSize)
	}
	if !fr.Selection.Contains("@type", query.StringTerm("dataset")) {
		t.Errorf("Expected filters to be decoded, got %v", fr.Selection)
	}
}

func TestParseFacetQueryBody(t *testing.T) {
	body := `{"q":"flu","facets":["keywords"],"selection":{"keywords":[{"-_exists_":["keywords"]}]}}`
	r := httptest.NewRequest(http.MethodPost, "/api/facets", strings.NewReader(body))
	fr := &FacetRequest{}
	if err := GetFacetQueryFromRequest(r, fr); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fr.Query != "flu" || len(fr.Facets) != 1 {
		t.Errorf("Unexpected request %+v", fr)
	}
	if !fr.Selection.Contains("keywords", query.Missing("keywords")) {
		t.Errorf("Expected exists filter in selection, got %v", fr.Selection)
	}
}

func TestParseFacetQueryInvalid(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/facets?facet_size=lots", nil)
	if err := GetFacetQueryFromRequest(r, &FacetRequest{}); err == nil {
		t.Errorf("Expected error for non numeric facet size")
	}
}

func TestFilterActionValue(t *testing.T) {
	a := FilterAction{Facet: "keywords", Value: "covid"}
	if !query.SameValue(a.FilterValue(), query.StringTerm("covid")) {
		t.Errorf("Expected string term, got %v", a.FilterValue())
	}
	a.Missing = true
	if !query.SameValue(a.FilterValue(), query.Missing("keywords")) {
		t.Errorf("Expected exists filter, got %v", a.FilterValue())
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a, b", "", "c,"})
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Expected [a b c], got %v", got)
	}
}
