// Package allocator converts target zone weights into dollar budgets and
// produces rebalancing advice, module 3 of the pipeline.
package allocator

import (
	"sort"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
)

// CapitalByZone maps each zone to its dollar budget, summing to fund_size.
type CapitalByZone map[config.Zone]float64

// Allocate converts cfg.ZoneAllocations into dollar budgets. The sum of
// the returned map equals cfg.FundSize to within a cent: the last zone in
// config.Zones (red) absorbs any residual cent of floating-point rounding so the invariant
// holds exactly in dollars.
func Allocate(cfg *config.Configuration) CapitalByZone {
	out := make(CapitalByZone, len(config.Zones))
	var allocated float64
	for i, z := range config.Zones {
		if i == len(config.Zones)-1 {
			out[z] = cfg.FundSize - allocated
			continue
		}
		amt := round2(cfg.FundSize * cfg.ZoneAllocations[z])
		out[z] = amt
		allocated += amt
	}
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// Adjustment is one zone's rebalancing instruction: move Amount dollars
// into the zone (negative means move out).
type Adjustment struct {
	Zone   config.Zone
	Amount float64
}

// Rebalance compares actual per-zone dollar allocations against target and
// returns a greedy largest-gap-first list of adjustments that would bring
// actual within tolerance (a fraction of fund_size) of target. Zones
// already within tolerance are omitted.
func Rebalance(target CapitalByZone, actual CapitalByZone, fundSize, tolerance float64) []Adjustment {
	type gap struct {
		zone config.Zone
		diff float64
	}

	var gaps []gap
	for _, z := range config.Zones {
		diff := target[z] - actual[z]
		if fundSize > 0 && absf(diff)/fundSize <= tolerance {
			continue
		}
		gaps = append(gaps, gap{zone: z, diff: diff})
	}

	sort.Slice(gaps, func(i, j int) bool {
		return absf(gaps[i].diff) > absf(gaps[j].diff)
	})

	out := make([]Adjustment, 0, len(gaps))
	for _, g := range gaps {
		out = append(out, Adjustment{Zone: g.zone, Amount: g.diff})
	}
	return out
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
