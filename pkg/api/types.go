package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/schema"
	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
)

// AllQuery matches every record.
const AllQuery = "__all__"

// Request is one GET against the search endpoint.
type Request struct {
	Query       string `schema:"q"`
	ExtraFilter string `schema:"extra_filter,omitempty"`
	Facets      string `schema:"facets,omitempty"`
	FacetSize   int    `schema:"facet_size,omitempty"`
	Hist        string `schema:"hist,omitempty"`
	Size        int    `schema:"size"`
	From        int    `schema:"from,omitempty"`
	Sort        string `schema:"sort,omitempty"`
}

var encoder = schema.NewEncoder()

// NewFacetRequest builds a zero-size request that only asks for facet terms.
func NewFacetRequest(q, extraFilter string, facets []string, facetSize int) Request {
	if strings.TrimSpace(q) == "" {
		q = AllQuery
	}
	return Request{
		Query:       q,
		ExtraFilter: extraFilter,
		Facets:      strings.Join(facets, ","),
		FacetSize:   facetSize,
	}
}

// MissingQuery returns q restricted to records without facet.
func MissingQuery(q, facet string) string {
	if q = strings.TrimSpace(q); q == "" || q == AllQuery {
		return "-_exists_:" + facet
	}
	return "(" + q + ") AND -_exists_:" + facet
}

func (r Request) Values() (url.Values, error) {
	values := url.Values{}
	if err := encoder.Encode(r, values); err != nil {
		return nil, err
	}
	return values, nil
}

// CacheKey identifies requests that can share a response.
func (r Request) CacheKey() string {
	values, err := r.Values()
	if err != nil {
		return fmt.Sprintf("%+v", r)
	}
	return values.Encode()
}

// Response is the JSON body returned by the search endpoint.
type Response struct {
	Total   int                    `json:"total"`
	Hits    []map[string]any       `json:"hits,omitempty"`
	Results []map[string]any       `json:"results,omitempty"`
	Facets  map[string]FacetResult `json:"facets,omitempty"`
}

// Items returns the records of the response regardless of which key the endpoint used.
func (r *Response) Items() []map[string]any {
	if len(r.Hits) > 0 {
		return r.Hits
	}
	return r.Results
}

type FacetResult struct {
	Type    string      `json:"_type,omitempty"`
	Terms   []FacetTerm `json:"terms"`
	Total   int         `json:"total"`
	Missing int         `json:"missing"`
	Other   int         `json:"other"`
}

// FacetTerm is one aggregation bucket. Nested holds secondary aggregations
// keyed by facet when the endpoint returns them inside the bucket.
type FacetTerm struct {
	Term   string                 `json:"term"`
	Count  int                    `json:"count"`
	Nested map[string]FacetResult `json:"nested,omitempty"`
}

func (t *FacetTerm) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := jsoncompat.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = FacetTerm{}
	for k, v := range raw {
		switch k {
		case "term":
			t.Term = scalarString(v)
		case "count":
			if f, ok := v.(float64); ok {
				t.Count = int(f)
			}
		default:
			sub, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if _, hasTerms := sub["terms"]; !hasTerms {
				continue
			}
			b, err := jsoncompat.Marshal(sub)
			if err != nil {
				return err
			}
			var nested FacetResult
			if err := jsoncompat.Unmarshal(b, &nested); err != nil {
				return fmt.Errorf("nested facet %s: %w", k, err)
			}
			if t.Nested == nil {
				t.Nested = make(map[string]FacetResult)
			}
			t.Nested[k] = nested
		}
	}
	return nil
}

func (t FacetTerm) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(t.Nested)+2)
	for k, v := range t.Nested {
		raw[k] = v
	}
	raw["term"] = t.Term
	raw["count"] = t.Count
	return jsoncompat.Marshal(raw)
}

func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// StatusError is returned when the search endpoint answers with a non 2xx status.
type StatusError struct {
	StatusCode int
	Url        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("search api returned %d for %s", e.StatusCode, e.Url)
	}
	return fmt.Sprintf("search api returned %d for %s: %s", e.StatusCode, e.Url, e.Body)
}
