package query

import (
	"strings"
)

// Decode parses an encoded filter string back into a Selection. Decoding is
// lenient: clauses that cannot be understood are dropped, so a hand edited or
// truncated link still yields whatever could be recovered.
//
// Facet keys are split on the first colon and must not contain one.
func Decode(filters string) Selection {
	result := Selection{}
	filters = strings.TrimSpace(filters)
	if filters == "" {
		return result
	}
	for _, clause := range splitTopLevel(filters, " AND ") {
		key, values, ok := decodeClause(clause)
		if !ok {
			continue
		}
		result[key] = append(result[key], values...)
	}
	return result
}

// DecodeValues decodes the first value of a url parameter list, the way a
// repeated or missing ?filters= parameter is read.
func DecodeValues(values []string) Selection {
	if len(values) == 0 {
		return Selection{}
	}
	return Decode(values[0])
}

func decodeClause(clause string) (string, []Value, bool) {
	clause = trimParens(clause)
	key, raw, found := strings.Cut(clause, ":")
	if !found {
		return "", nil, false
	}
	key = strings.Trim(key, "() ")
	if key == "" {
		return "", nil, false
	}
	values := decodeValues(raw)
	if len(values) == 0 {
		return "", nil, false
	}
	return key, values, true
}

func decodeValues(raw string) []Value {
	var values []Value
	for _, part := range splitTopLevel(strings.TrimSpace(raw), " OR ") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case isQuoted(part):
			values = append(values, StringTerm(unescape(part[1:len(part)-1])))
		case strings.Contains(part, ExistsKey):
			if e, ok := decodeExists(part); ok {
				values = append(values, e)
			}
		case isWrapped(part):
			values = append(values, decodeValues(part[1:len(part)-1])...)
		default:
			if term := strings.Trim(part, `()" `); term != "" {
				values = append(values, StringTerm(term))
			}
		}
	}
	return values
}

func decodeExists(part string) (ExistsFilter, bool) {
	key, values, ok := decodeClause(part)
	if !ok || key != ExistsKey {
		return ExistsFilter{}, false
	}
	e := ExistsFilter{}
	for _, v := range values {
		if s, ok := v.(StringTerm); ok {
			e.Fields = append(e.Fields, string(s))
		}
	}
	return e, len(e.Fields) > 0
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && closingQuote(s) == len(s)-1
}

// closingQuote returns the index of the unescaped quote closing the one at
// s[0], or -1 when it is never closed.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func isWrapped(s string) bool {
	return len(s) >= 2 && s[0] == '(' && closingParen(s) == len(s)-1
}

func trimParens(s string) string {
	s = strings.TrimSpace(s)
	for isWrapped(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// closingParen returns the index of the parenthesis closing the one at s[0],
// or -1 when it is never closed.
func closingParen(s string) int {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quoted {
				i++
			}
		case '"':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep where sep is outside of quotes and parentheses.
func splitTopLevel(s, sep string) []string {
	parts := make([]string, 0, 2)
	depth := 0
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quoted {
				i++
			}
		case '"':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted && depth > 0 {
				depth--
			}
		case sep[0]:
			if !quoted && depth == 0 && strings.HasPrefix(s[i:], sep) {
				parts = append(parts, s[start:i])
				start = i + len(sep)
				i = start - 1
			}
		}
	}
	return append(parts, s[start:])
}
