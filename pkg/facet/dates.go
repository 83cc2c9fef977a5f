package facet

import (
	"fmt"
	"strconv"
)

// DateFacet is the facet holding publication dates.
const DateFacet = "date"

// AggregateDatesByYear sums per day (or timestamp) terms into one term per
// year. Every year between the first and the last one is present, gap years
// with a zero count, in ascending order. A missing pseudo-term is summed into
// its own bucket and placed first. Terms without a numeric year are dropped.
func AggregateDatesByYear(terms []Term) []Term {
	counts := make(map[int]int)
	var missing *Term
	var facet string
	first, last := 0, 0
	for _, t := range terms {
		if t.IsMissing() {
			if missing == nil {
				missing = &Term{Term: t.Term, DisplayAs: t.DisplayAs, Facet: t.Facet}
			}
			missing.Count += t.Count
			continue
		}
		if len(t.Term) < 4 {
			continue
		}
		year, err := strconv.Atoi(t.Term[:4])
		if err != nil || year < 0 {
			continue
		}
		if len(counts) == 0 || year < first {
			first = year
		}
		if len(counts) == 0 || year > last {
			last = year
		}
		counts[year] += t.Count
		facet = t.Facet
	}

	result := make([]Term, 0, len(counts)+1)
	if missing != nil {
		result = append(result, *missing)
	}
	if len(counts) == 0 {
		return result
	}
	for year := first; year <= last; year++ {
		y := fmt.Sprintf("%04d", year)
		result = append(result, Term{
			Term:      y,
			DisplayAs: y,
			Count:     counts[year],
			Facet:     facet,
		})
	}
	return result
}
