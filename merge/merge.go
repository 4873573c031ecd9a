// Package merge unifies crawl results from multiple sources into one
// deduplicated flight list with trust-ordered conflict resolution.
package merge

import (
	"sort"

	"github.com/skyfare/skyfare/core"
)

// Merge combines crawl results into a single flight list:
//
//  1. Failed results are discarded.
//  2. Flights group by dedup key; the first seen flight seeds a group.
//  3. Later members union their prices into the seed. Prices are never
//     deduplicated; near-identical amounts from different sources are
//     information, not noise.
//  4. A later member from a strictly more trusted source replaces the
//     seed's non-price fields, keeping the accumulated price list.
//  5. Groups sort ascending by lowest price; priceless flights sort
//     last; ties break by dedup key.
//
// Each merged flight carries the distinct contributing sources in
// MergedSources when more than one source observed it.
func Merge(results []core.CrawlResult) []core.NormalizedFlight {
	groups := map[string]*group{}
	var order []string

	for _, res := range results {
		if !res.Success {
			continue
		}
		for _, f := range res.Flights {
			key := f.DedupKey()
			g, ok := groups[key]
			if !ok {
				seed := f.Clone()
				groups[key] = &group{
					seed:    seed,
					sources: map[core.DataSource]bool{f.Source: true},
				}
				order = append(order, key)
				continue
			}
			g.absorb(f)
		}
	}

	out := make([]core.NormalizedFlight, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key].result())
	}
	sortByLowestPrice(out)
	return out
}

type group struct {
	seed    core.NormalizedFlight
	sources map[core.DataSource]bool
}

// absorb folds a later observation of the same flight into the group.
func (g *group) absorb(f core.NormalizedFlight) {
	merged := append(g.seed.Prices, cloneprices(f.Prices)...)

	if core.MoreTrusted(f.Source, g.seed.Source) {
		replacement := f.Clone()
		replacement.Prices = merged
		g.seed = replacement
	} else {
		g.seed.Prices = merged
	}
	g.sources[f.Source] = true
}

func (g *group) result() core.NormalizedFlight {
	f := g.seed
	if len(g.sources) > 1 {
		merged := make([]core.DataSource, 0, len(g.sources))
		for s := range g.sources {
			merged = append(merged, s)
		}
		sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
		f.MergedSources = merged
	}
	return f
}

func cloneprices(prices []core.NormalizedPrice) []core.NormalizedPrice {
	return append([]core.NormalizedPrice(nil), prices...)
}

func sortByLowestPrice(flights []core.NormalizedFlight) {
	sort.SliceStable(flights, func(i, j int) bool {
		li, iok := flights[i].LowestPrice()
		lj, jok := flights[j].LowestPrice()
		switch {
		case iok && !jok:
			return true
		case !iok && jok:
			return false
		case !iok && !jok:
			return flights[i].DedupKey() < flights[j].DedupKey()
		case li != lj:
			return li < lj
		default:
			return flights[i].DedupKey() < flights[j].DedupKey()
		}
	})
}
