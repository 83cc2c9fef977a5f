package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/schema"
	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
	"github.com/matst80/slask-discovery/pkg/query"
)

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

// FacetRequest selects the facets to load. Filters is the encoded filter
// string from the page url; a json body may send the Selection directly.
type FacetRequest struct {
	Query     string          `json:"q" schema:"q"`
	Filters   string          `json:"filters" schema:"filters"`
	Selection query.Selection `json:"selection,omitempty" schema:"-"`
	Facets    []string        `json:"facets" schema:"facets"`
	FacetSize int             `json:"facet_size" schema:"facet_size"`
}

// FilterAction names the facet value a filter action applies to. Missing
// selects the "not specified" value of the facet instead of Value.
type FilterAction struct {
	Facet   string `schema:"facet"`
	Value   string `schema:"value"`
	Missing bool   `schema:"missing"`
}

func (a FilterAction) FilterValue() query.Value {
	if a.Missing {
		return query.Missing(a.Facet)
	}
	return query.StringTerm(a.Value)
}

func GetFacetQueryFromRequest(r *http.Request, fr *FacetRequest) error {
	var err error
	if r.Method == http.MethodPost && r.Body != nil && r.ContentLength != 0 {
		err = jsoncompat.NewDecoder(r.Body).Decode(fr)
	} else {
		err = facetQueryFromRequestQuery(r.URL.Query(), fr)
	}
	if err != nil {
		return err
	}
	fr.Facets = splitList(fr.Facets)
	if fr.Selection == nil {
		fr.Selection = query.Decode(fr.Filters)
	}
	return nil
}

func facetQueryFromRequestQuery(values url.Values, fr *FacetRequest) error {
	return decoder.Decode(fr, values)
}

// splitList accepts both repeated parameters and comma separated lists.
func splitList(items []string) []string {
	ret := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ret = append(ret, part)
			}
		}
	}
	return ret
}
