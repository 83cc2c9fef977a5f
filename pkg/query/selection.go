package query

import (
	"fmt"
	"maps"
	"slices"

	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
)

// Selection maps a facet key to its selected values. A facet with an empty
// list is the same as a facet that is not present.
type Selection map[string][]Value

// Empty returns a selection holding an empty list for every facet key.
func Empty(facets ...string) Selection {
	s := make(Selection, len(facets))
	for _, f := range facets {
		s[f] = []Value{}
	}
	return s
}

// Keys returns the facet keys that have at least one value, sorted.
func (s Selection) Keys() []string {
	keys := make([]string, 0, len(s))
	for k, v := range s {
		if len(v) > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// IsEmpty reports whether no facet has a selected value.
func (s Selection) IsEmpty() bool {
	for _, v := range s {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (s Selection) Clone() Selection {
	result := make(Selection, len(s))
	for k, values := range s {
		c := make([]Value, len(values))
		for i, v := range values {
			c[i] = cloneValue(v)
		}
		result[k] = c
	}
	return result
}

// WithOut returns a copy of the selection without the given facet. Used to
// build the extra filter for a facet so it never filters its own counts.
func (s Selection) WithOut(facet string) Selection {
	result := s.Clone()
	delete(result, facet)
	return result
}

// Merge returns the defaults overlaid with the values present in s.
func (s Selection) Merge(defaults Selection) Selection {
	result := defaults.Clone()
	maps.Copy(result, s.Clone())
	return result
}

// Contains reports whether value is selected for facet.
func (s Selection) Contains(facet string, value Value) bool {
	return slices.ContainsFunc(s[facet], func(v Value) bool {
		return SameValue(v, value)
	})
}

// Equal compares two selections per facet as sets of values.
func (s Selection) Equal(other Selection) bool {
	keys := s.Keys()
	if !slices.Equal(keys, other.Keys()) {
		return false
	}
	for _, k := range keys {
		if !sameSet(s[k], other[k]) {
			return false
		}
	}
	return true
}

func sameSet(a, b []Value) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v.key()] = struct{}{}
	}
	other := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, ok := set[v.key()]; !ok {
			return false
		}
		other[v.key()] = struct{}{}
	}
	return len(set) == len(other)
}

func (s Selection) MarshalJSON() ([]byte, error) {
	raw := make(map[string][]any, len(s))
	for k, values := range s {
		list := make([]any, 0, len(values))
		for _, v := range values {
			switch v := v.(type) {
			case StringTerm:
				list = append(list, string(v))
			case ExistsFilter:
				list = append(list, map[string][]string{ExistsKey: v.Fields})
			}
		}
		raw[k] = list
	}
	return jsoncompat.Marshal(raw)
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := jsoncompat.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make(Selection, len(raw))
	for k, entry := range raw {
		items, ok := entry.([]any)
		if !ok {
			items = []any{entry}
		}
		values := make([]Value, 0, len(items))
		for _, item := range items {
			v, err := valueFromJSON(item)
			if err != nil {
				return fmt.Errorf("facet %s: %w", k, err)
			}
			if v != nil {
				values = append(values, v)
			}
		}
		result[k] = values
	}
	*s = result
	return nil
}

func valueFromJSON(item any) (Value, error) {
	switch item := item.(type) {
	case nil:
		return nil, nil
	case string:
		return StringTerm(item), nil
	case map[string]any:
		fields, ok := item[ExistsKey]
		if !ok || len(item) != 1 {
			return nil, fmt.Errorf("unsupported filter object %v", item)
		}
		e := ExistsFilter{}
		switch fields := fields.(type) {
		case string:
			e.Fields = []string{fields}
		case []any:
			for _, f := range fields {
				if str, ok := f.(string); ok {
					e.Fields = append(e.Fields, str)
				}
			}
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported filter value %v", item)
	}
}
