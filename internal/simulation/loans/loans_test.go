package loans

import (
	"testing"

	"github.com/equihomepartners/core-engine/internal/simulation/allocator"
	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/rng"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	apperrors "github.com/equihomepartners/core-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseline() (*config.Configuration, allocator.CapitalByZone, *tls.MockProvider) {
	cfg := config.Default()
	cfg.FundSize = 100_000_000
	cap := allocator.Allocate(cfg)
	provider := tls.NewMockProvider(42)
	return cfg, cap, provider
}

func TestGenerateProducesLoansWithinBounds(t *testing.T) {
	cfg, cap, provider := baseline()
	stream := rng.New(42, "run-1")

	result, err := Generate(cfg, cap, provider, stream, cfg.VintageYear, 0)
	require.NoError(t, err)
	require.NotEmpty(t, result)

	for _, l := range result {
		assert.GreaterOrEqual(t, l.LoanSize, cfg.MinLoanSize*0.999)
		assert.LessOrEqual(t, l.LoanSize, cfg.MaxLoanSize*1.001)
		assert.GreaterOrEqual(t, l.LTV, cfg.MinLTV-1e-9)
		assert.LessOrEqual(t, l.LTV, cfg.MaxLTV+1e-9)
		assert.InDelta(t, l.LoanSize/l.LTV, l.PropertyValue, l.PropertyValue*0.0001+1e-6)
	}
}

func TestGenerateSumsApproximateZoneBudgets(t *testing.T) {
	cfg, cap, provider := baseline()
	stream := rng.New(42, "run-1")

	result, err := Generate(cfg, cap, provider, stream, cfg.VintageYear, 0)
	require.NoError(t, err)

	spent := map[config.Zone]float64{}
	for _, l := range result {
		spent[l.Zone] += l.LoanSize
	}
	for _, z := range config.Zones {
		assert.InDelta(t, cap[z], spent[z], cap[z]*0.02)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg, cap, provider := baseline()

	a, err := Generate(cfg, cap, provider, rng.New(42, "run-1"), cfg.VintageYear, 0)
	require.NoError(t, err)
	b, err := Generate(cfg, cap, provider, rng.New(42, "run-1"), cfg.VintageYear, 0)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestGenerateFailsWithAllocationInfeasibleWhenZoneBudgetTooSmall(t *testing.T) {
	cfg := config.Default()
	cfg.FundSize = 100_000_000
	cfg.ZoneAllocations = config.ZoneAllocations{config.ZoneGreen: 0.6, config.ZoneOrange: 0.39, config.ZoneRed: 0.01}
	cfg.MinLoanSize = 2_000_000
	cfg.MaxLoanSize = 3_000_000
	cfg.AvgLoanSize = 2_500_000

	cap := allocator.Allocate(cfg)
	provider := tls.NewMockProvider(42)
	stream := rng.New(1, "run-1")

	_, err := Generate(cfg, cap, provider, stream, cfg.VintageYear, 0)
	require.Error(t, err)
	ae, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.AllocationInfeasible, ae.Type)
}

func TestGenerateReinvestmentContinuesSequenceAndFlagsLoans(t *testing.T) {
	cfg, cap, provider := baseline()
	initial, err := Generate(cfg, cap, provider, rng.New(42, "run-1"), cfg.VintageYear, 0)
	require.NoError(t, err)

	seqr := NewSequencer(HighestSequence(initial))
	weights := map[config.Zone]float64{config.ZoneGreen: 0.6, config.ZoneOrange: 0.3, config.ZoneRed: 0.1}
	extra, err := seqr.GenerateReinvestment(cfg, 1_000_000, weights, provider, rng.New(43, "run-1"), cfg.VintageYear+1, 12)
	require.NoError(t, err)
	require.NotEmpty(t, extra)

	seen := map[string]bool{}
	for _, l := range initial {
		seen[l.LoanID] = true
	}
	for _, l := range extra {
		assert.False(t, seen[l.LoanID], "reinvestment loan id collided with initial portfolio")
		assert.True(t, l.ReinvestmentGen)
		seen[l.LoanID] = true
	}
}
