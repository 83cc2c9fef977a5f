package facet

import "slices"

// Reconcile refreshes the counts of the baseline terms with the counts found
// in updated. Every baseline term is kept; terms missing from updated get a
// zero count so the list does not change shape. Lists are re-sorted by count,
// except for the chronological facets which keep their term order.
func Reconcile(baseline, updated Collection, chronological ...string) Collection {
	result := make(Collection, len(baseline))
	for facet, terms := range baseline {
		byTerm := make(map[string]Term, len(updated[facet]))
		for _, t := range updated[facet] {
			byTerm[t.Term] = t
		}
		list := make([]Term, len(terms))
		for i, t := range terms {
			if u, ok := byTerm[t.Term]; ok {
				t.Count = u.Count
				t.Breakdown = cloneTerms(u.Breakdown)
			} else {
				t.Count = 0
				t.Breakdown = nil
			}
			list[i] = t
		}
		if slices.Contains(chronological, facet) {
			SortChronological(list)
		} else {
			SortByCount(list)
		}
		result[facet] = list
	}
	return result
}
