package reinvestment

import (
	"testing"

	"github.com/equihomepartners/core-engine/internal/simulation/allocator"
	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/exit"
	"github.com/equihomepartners/core-engine/internal/simulation/loans"
	"github.com/equihomepartners/core-engine/internal/simulation/pricepath"
	"github.com/equihomepartners/core-engine/internal/simulation/rng"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunGeneratesNewLoansWhenCashAccumulates(t *testing.T) {
	cfg := config.Default()
	cfg.FundSize = 20_000_000
	cfg.FundTermYears = 10
	cfg.ReinvestmentPeriodYears = 5
	cfg.ReinvestmentEngine.MinCashThreshold = 250_000

	cap := allocator.Allocate(cfg)
	provider := tls.NewMockProvider(42)
	portfolio, err := loans.Generate(cfg, cap, provider, rng.New(42, "run-1"), cfg.VintageYear, 0)
	require.NoError(t, err)

	paths, _, err := pricepath.Run(cfg, provider, nil, nil, rng.New(42, "run-1"))
	require.NoError(t, err)

	records, cancelled := exit.Simulate(cfg, portfolio, paths, cfg.FundTermYears*12, rng.New(42, "run-1"), nil)
	require.False(t, cancelled)

	result := Run(cfg, portfolio, records, provider, rng.New(42, "run-1"))
	if len(result.NewLoans) > 0 {
		assert.NotEmpty(t, result.Events)
		for _, e := range result.Events {
			assert.NotEmpty(t, e.NewLoanIDs)
			assert.Less(t, e.Month, cfg.ReinvestmentPeriodYears*12)
		}
	}
}

func TestRunProducesNoLoansWhenWindowIsZero(t *testing.T) {
	cfg := config.Default()
	cfg.ReinvestmentPeriodYears = 0
	provider := tls.NewMockProvider(1)

	result := Run(cfg, nil, nil, provider, rng.New(1, "run-1"))
	assert.Empty(t, result.NewLoans)
	assert.Empty(t, result.Events)
}

func TestBiasedWeightsRenormalize(t *testing.T) {
	cfg := config.Default()
	cfg.ZoneAllocations = config.ZoneAllocations{config.ZoneGreen: 0.6, config.ZoneOrange: 0.3, config.ZoneRed: 0.1}
	cfg.ReinvestmentEngine.ZonePreferenceMultipliers = config.ZoneRates{config.ZoneGreen: 2.0, config.ZoneOrange: 1.0, config.ZoneRed: 1.0}

	weights := biasedWeights(cfg)
	var sum float64
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, weights[config.ZoneGreen], 0.6)
}
