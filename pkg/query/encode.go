package query

import (
	"strings"
)

// TypeFacet is the resource type facet whose terms are capitalized class names.
const TypeFacet = "@type"

// escaper escapes backslashes and double quotes inside quoted terms.
var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

var typeNames = map[string]string{
	"dataset":           "Dataset",
	"computationaltool": "ComputationalTool",
}

// NormalizeTypeName maps lower-case resource type terms to the class names the
// search API indexes. Terms of any other facet are returned as is.
func NormalizeTypeName(facet, term string) string {
	if facet != TypeFacet {
		return term
	}
	if name, ok := typeNames[strings.ToLower(term)]; ok {
		return name
	}
	return term
}

// NormalizeValue applies NormalizeTypeName to a string term.
func NormalizeValue(facet string, v Value) Value {
	if term, ok := v.(StringTerm); ok {
		return StringTerm(NormalizeTypeName(facet, string(term)))
	}
	return v
}

// Encode builds the search API query fragment for the selection, one
// (facet:("v1" OR "v2")) clause per facet joined by AND. Facets are emitted in
// key order. The second return value is false when no facet has a value.
func (s Selection) Encode() (string, bool) {
	clauses := make([]string, 0, len(s))
	for _, key := range s.Keys() {
		if clause, ok := encodeFacet(key, s[key]); ok {
			clauses = append(clauses, clause)
		}
	}
	if len(clauses) == 0 {
		return "", false
	}
	return strings.Join(clauses, " AND "), true
}

// String returns the encoded selection or an empty string.
func (s Selection) String() string {
	str, _ := s.Encode()
	return str
}

func encodeFacet(key string, values []Value) (string, bool) {
	terms := make([]string, 0, len(values))
	nested := make([]string, 0)
	for _, v := range values {
		switch v := v.(type) {
		case StringTerm:
			terms = append(terms, `"`+escaper.Replace(NormalizeTypeName(key, string(v)))+`"`)
		case ExistsFilter:
			if clause, ok := v.encode(); ok {
				nested = append(nested, clause)
			}
		}
	}

	var sb strings.Builder
	if len(terms) > 0 {
		sb.WriteString("(")
		sb.WriteString(strings.Join(terms, " OR "))
		sb.WriteString(")")
	}
	if len(nested) > 0 {
		if sb.Len() > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString(strings.Join(nested, " OR "))
	}
	if sb.Len() == 0 {
		return "", false
	}
	return "(" + key + ":" + sb.String() + ")", true
}

func (e ExistsFilter) encode() (string, bool) {
	fields := make([]Value, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = StringTerm(f)
	}
	return encodeFacet(ExistsKey, fields)
}
