package allocator

import (
	"testing"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/stretchr/testify/assert"
)

func TestAllocateSumsExactlyToFundSize(t *testing.T) {
	cfg := config.Default()
	cfg.FundSize = 100_000_000
	cfg.ZoneAllocations = config.ZoneAllocations{config.ZoneGreen: 0.6, config.ZoneOrange: 0.3, config.ZoneRed: 0.1}

	out := Allocate(cfg)
	var sum float64
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, cfg.FundSize, sum, 0.01)
}

func TestAllocateProportions(t *testing.T) {
	cfg := config.Default()
	cfg.FundSize = 100_000_000
	cfg.ZoneAllocations = config.ZoneAllocations{config.ZoneGreen: 0.6, config.ZoneOrange: 0.3, config.ZoneRed: 0.1}

	out := Allocate(cfg)
	assert.InDelta(t, 60_000_000, out[config.ZoneGreen], 1)
	assert.InDelta(t, 30_000_000, out[config.ZoneOrange], 1)
}

func TestRebalanceOmitsWithinTolerance(t *testing.T) {
	target := CapitalByZone{config.ZoneGreen: 60_000_000, config.ZoneOrange: 30_000_000, config.ZoneRed: 10_000_000}
	actual := CapitalByZone{config.ZoneGreen: 60_050_000, config.ZoneOrange: 29_950_000, config.ZoneRed: 10_000_000}

	adj := Rebalance(target, actual, 100_000_000, 0.01)
	assert.Empty(t, adj)
}

func TestRebalanceOrdersByLargestGapFirst(t *testing.T) {
	target := CapitalByZone{config.ZoneGreen: 60_000_000, config.ZoneOrange: 30_000_000, config.ZoneRed: 10_000_000}
	actual := CapitalByZone{config.ZoneGreen: 55_000_000, config.ZoneOrange: 33_000_000, config.ZoneRed: 12_000_000}

	adj := Rebalance(target, actual, 100_000_000, 0.001)
	if assert.Len(t, adj, 3) {
		assert.Equal(t, config.ZoneGreen, adj[0].Zone)
		assert.InDelta(t, 5_000_000, adj[0].Amount, 1)
	}
}
