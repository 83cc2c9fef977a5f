package query

import (
	"fmt"
	"slices"
	"strings"
)

// ExistsKey is the sentinel facet value meaning "this field is absent on the record".
const ExistsKey = "-_exists_"

// Value is one selected value of a facet. It is either a StringTerm or an ExistsFilter.
type Value interface {
	isFilterValue()
	key() string
}

var _ Value = StringTerm("")
var _ Value = ExistsFilter{}

// StringTerm is an exact-match term.
type StringTerm string

func (StringTerm) isFilterValue() {}

func (s StringTerm) key() string {
	return "s:" + string(s)
}

func (s StringTerm) String() string {
	return string(s)
}

// ExistsFilter matches records where all Fields are missing.
// Its JSON form is {"-_exists_": ["field", ...]}.
type ExistsFilter struct {
	Fields []string
}

func (ExistsFilter) isFilterValue() {}

func (e ExistsFilter) key() string {
	fields := slices.Clone(e.Fields)
	slices.Sort(fields)
	return "e:" + strings.Join(fields, ",")
}

func (e ExistsFilter) String() string {
	return fmt.Sprintf("%s:%v", ExistsKey, e.Fields)
}

// Missing is the exists filter selecting records without the given facet.
func Missing(facet string) ExistsFilter {
	return ExistsFilter{Fields: []string{facet}}
}

// ValueForTerm maps a facet term as returned by the search API to the value
// that selects it. The ExistsKey pseudo-term becomes an ExistsFilter on the facet.
func ValueForTerm(facet, term string) Value {
	if term == ExistsKey {
		return Missing(facet)
	}
	return StringTerm(term)
}

// SameValue reports whether a and b select the same records.
func SameValue(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.key() == b.key()
}

func cloneValue(v Value) Value {
	if e, ok := v.(ExistsFilter); ok {
		return ExistsFilter{Fields: slices.Clone(e.Fields)}
	}
	return v
}
