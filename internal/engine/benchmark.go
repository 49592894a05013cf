package engine

import (
	"github.com/sells-group/readiness-cli/internal/model"
)

// continentGroup names the single peer set covering every country.
const continentGroup = "africa"

var benchmarkScopes = []struct {
	scope model.BenchmarkScope
	group func(cs *model.CountryScore) string
}{
	{model.ScopeRegion, func(cs *model.CountryScore) string { return string(cs.Region) }},
	{model.ScopeIncomeClass, func(cs *model.CountryScore) string { return string(cs.IncomeClass) }},
	{model.ScopeContinent, func(*model.CountryScore) string { return continentGroup }},
}

// ApplyBenchmarks sets percentile ranks on every score in a completed
// run: within region, income class and the whole continent, for the
// total and for each pillar. A percentile is the share of the peer set
// scoring strictly below the country, so tied scores share a percentile.
// Countries with no data for any pillar are left out of every peer set,
// and a pillar without data is left out of that pillar's peer set.
//
// It must only run after every CountryScore in the run is final.
func ApplyBenchmarks(scores []model.CountryScore) {
	for i := range scores {
		scores[i].Benchmarks = []model.Benchmark{}
	}

	for _, sc := range benchmarkScopes {
		groups := make(map[string][]int)
		for i := range scores {
			if !assessed(&scores[i]) {
				continue
			}
			g := sc.group(&scores[i])
			groups[g] = append(groups[g], i)
		}

		for g, members := range groups {
			for _, i := range members {
				cs := &scores[i]
				bm := model.Benchmark{
					Scope:             sc.scope,
					Group:             g,
					Peers:             len(members),
					TotalPercentile:   percentile(cs.TotalScore, members, func(j int) (float64, bool) { return scores[j].TotalScore, true }),
					PillarPercentiles: make(map[model.Pillar]float64),
				}
				for pi := range cs.Pillars {
					ps := &cs.Pillars[pi]
					if !ps.Available {
						continue
					}
					p := ps.Pillar
					pct := percentile(ps.Score, members, func(j int) (float64, bool) {
						other := scores[j].Pillar(p)
						if other == nil || !other.Available {
							return 0, false
						}
						return other.Score, true
					})
					bm.PillarPercentiles[p] = pct
					if sc.scope == model.ScopeRegion {
						v := pct
						ps.RegionalPercentile = &v
					}
				}
				cs.Benchmarks = append(cs.Benchmarks, bm)
			}
		}
	}
}

// percentile returns 100 * (peers strictly below v) / (peers with a
// value). The country itself counts as a peer.
func percentile(v float64, members []int, value func(j int) (float64, bool)) float64 {
	var below, total int
	for _, j := range members {
		other, ok := value(j)
		if !ok {
			continue
		}
		total++
		if other < v {
			below++
		}
	}
	if total == 0 {
		return 0
	}
	return round(float64(below)/float64(total)*100, 2)
}

func assessed(cs *model.CountryScore) bool {
	for _, ps := range cs.Pillars {
		if ps.Available {
			return true
		}
	}
	return false
}
