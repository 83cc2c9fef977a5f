package facet

import (
	"strings"
	"unicode"

	"github.com/matst80/slask-discovery/pkg/query"
)

// Formatter returns the label shown for a term of a facet.
type Formatter func(facet, term string) string

// NotSpecified is the label of the missing pseudo-term.
const NotSpecified = "Not Specified"

// DefaultFormatter labels the missing pseudo-term, splits resource type class
// names into words and shows dates as years.
func DefaultFormatter(facet, term string) string {
	switch {
	case term == query.ExistsKey:
		return NotSpecified
	case facet == query.TypeFacet:
		return splitWords(term)
	case facet == DateFacet && len(term) >= 4:
		return term[:4]
	}
	return term
}

// LabelFormatter looks up labels per facet and term, e.g. display names of
// source repositories, and falls back to next.
func LabelFormatter(labels map[string]map[string]string, next Formatter) Formatter {
	if next == nil {
		next = DefaultFormatter
	}
	return func(facet, term string) string {
		if label, ok := labels[facet][term]; ok {
			return label
		}
		return next(facet, term)
	}
}

func splitWords(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			sb.WriteRune(' ')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
