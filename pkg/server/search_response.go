package server

import (
	"github.com/matst80/slask-discovery/pkg/facet"
	"github.com/matst80/slask-discovery/pkg/query"
	"github.com/matst80/slask-discovery/pkg/state"
)

type FacetsResponse struct {
	Facets   facet.Collection `json:"facets"`
	Filters  *string          `json:"filters"`
	Error    string           `json:"error,omitempty"`
	Loading  bool             `json:"loading"`
	Updating bool             `json:"updating"`
}

func newFacetsResponse(r facet.Result, selection query.Selection) FacetsResponse {
	ret := FacetsResponse{
		Facets:   r.Data,
		Filters:  encodedFilters(selection),
		Loading:  r.IsLoading,
		Updating: r.IsUpdating,
	}
	if ret.Facets == nil {
		ret.Facets = facet.Collection{}
	}
	if r.Err != nil {
		ret.Error = r.Err.Error()
	}
	return ret
}

type DatesResponse struct {
	Years    []facet.Term `json:"years"`
	Error    string       `json:"error,omitempty"`
	Loading  bool         `json:"loading"`
	Updating bool         `json:"updating"`
}

// FiltersResponse carries a selection and its encoded form; Filters is null
// when nothing is selected.
type FiltersResponse struct {
	Selection query.Selection `json:"selection,omitempty"`
	Filters   *string         `json:"filters"`
}

// FilterStateResponse is the page state after a filter action.
type FilterStateResponse struct {
	Params    state.Params    `json:"params"`
	Selection query.Selection `json:"selection"`
	Search    string          `json:"search"`
}

func encodedFilters(selection query.Selection) *string {
	if filters, ok := selection.Encode(); ok {
		return &filters
	}
	return nil
}
