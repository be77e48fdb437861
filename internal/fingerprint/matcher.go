package fingerprint

import "sort"

const DefaultRankLimit = 5

type Candidate struct {
	ID       string           `json:"id"`
	Distance int              `json:"distance"`
	Regions  [RegionCount]int `json:"regions"`
}

// MatchResult is the outcome of a catalog scan. Found == false is the
// "no confident match" outcome and is not an error. MatchedID is set only
// for a single unambiguous match. Distance is that of the nearest entry,
// or -1 for an empty catalog.
type MatchResult struct {
	Found     bool        `json:"found"`
	MatchedID string      `json:"matchedId,omitempty"`
	Distance  int         `json:"distance"`
	Ambiguous bool        `json:"ambiguous"`
	Best      []Candidate `json:"best,omitempty"`
	Ranked    []Candidate `json:"ranked"`
}

// Match compares query to every catalog fingerprint. The nearest entry is a
// match when its distance is at most threshold; entries tied at that distance
// are all returned.
func Match(query Fingerprint, catalog map[string]Fingerprint, threshold, limit int) MatchResult {
	if limit <= 0 {
		limit = DefaultRankLimit
	}

	all := make([]Candidate, 0, len(catalog))
	for id, fp := range catalog {
		rd := RegionDistances(query, fp)
		all = append(all, Candidate{ID: id, Distance: rd[0] + rd[1] + rd[2], Regions: rd})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].ID < all[j].ID
	})

	res := MatchResult{Ranked: all[:min(limit, len(all))], Distance: -1}
	if len(all) == 0 {
		return res
	}
	res.Distance = all[0].Distance
	if all[0].Distance > threshold {
		return res
	}

	n := 1
	for n < len(all) && all[n].Distance == all[0].Distance {
		n++
	}
	res.Found = true
	res.Ambiguous = n > 1
	res.Best = all[:n]
	if !res.Ambiguous {
		res.MatchedID = all[0].ID
	}
	return res
}
