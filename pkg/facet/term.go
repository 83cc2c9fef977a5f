package facet

import (
	"cmp"
	"maps"
	"slices"

	"github.com/matst80/slask-discovery/pkg/api"
	"github.com/matst80/slask-discovery/pkg/query"
)

// Term is one value of a facet together with the number of matching records.
type Term struct {
	Term      string `json:"term"`
	Count     int    `json:"count"`
	DisplayAs string `json:"displayAs"`
	Facet     string `json:"facet"`
	Breakdown []Term `json:"breakdown,omitempty"`
}

// IsMissing reports whether the term is the "Not Specified" pseudo-term.
func (t Term) IsMissing() bool {
	return t.Term == query.ExistsKey
}

// Value returns the filter value selecting this term.
func (t Term) Value() query.Value {
	return query.ValueForTerm(t.Facet, t.Term)
}

// Collection maps facet keys to their terms.
type Collection map[string][]Term

func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	result := make(Collection, len(c))
	for k, terms := range c {
		result[k] = cloneTerms(terms)
	}
	return result
}

// Facets returns the facet keys in sorted order.
func (c Collection) Facets() []string {
	return slices.Sorted(maps.Keys(c))
}

func cloneTerms(terms []Term) []Term {
	result := make([]Term, len(terms))
	for i, t := range terms {
		t.Breakdown = cloneTerms(t.Breakdown)
		result[i] = t
	}
	return result
}

func missingFirst(a, b Term) int {
	switch {
	case a.IsMissing() && !b.IsMissing():
		return -1
	case b.IsMissing() && !a.IsMissing():
		return 1
	}
	return 0
}

// SortByCount orders terms by count, highest first. The missing pseudo-term
// always comes first and equal counts are ordered by term.
func SortByCount(terms []Term) {
	slices.SortStableFunc(terms, func(a, b Term) int {
		if c := missingFirst(a, b); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
}

// SortChronological orders terms ascending by term, the missing pseudo-term first.
func SortChronological(terms []Term) {
	slices.SortStableFunc(terms, func(a, b Term) int {
		if c := missingFirst(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
}

// WithMissingFirst returns terms with a "Not Specified" pseudo-term for count
// records inserted at the head. An existing pseudo-term is replaced.
func WithMissingFirst(facet string, terms []Term, count int, format Formatter) []Term {
	result := make([]Term, 0, len(terms)+1)
	result = append(result, Term{
		Term:      query.ExistsKey,
		Count:     count,
		DisplayAs: format(facet, query.ExistsKey),
		Facet:     facet,
	})
	for _, t := range terms {
		if !t.IsMissing() {
			result = append(result, t)
		}
	}
	return result
}

// FromResult converts a facet aggregation from the search api.
func FromResult(facet string, res api.FacetResult, format Formatter) []Term {
	terms := make([]Term, 0, len(res.Terms))
	for _, t := range res.Terms {
		terms = append(terms, fromApiTerm(facet, t, format))
	}
	return terms
}

func fromApiTerm(facet string, t api.FacetTerm, format Formatter) Term {
	term := Term{
		Term:      t.Term,
		Count:     max(t.Count, 0),
		DisplayAs: format(facet, t.Term),
		Facet:     facet,
	}
	for _, nestedFacet := range slices.Sorted(maps.Keys(t.Nested)) {
		term.Breakdown = append(term.Breakdown, FromResult(nestedFacet, t.Nested[nestedFacet], format)...)
	}
	return term
}
