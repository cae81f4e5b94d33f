package cashflow

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

func buildPortfolioAndExits(t *testing.T, parallel bool) (*config.Configuration, []loans.Loan, []exit.Record) {
	t.Helper()
	cfg := config.Default()
	cfg.FundSize = 20_000_000
	cfg.FundTermYears = 5
	cfg.CashflowAggregator.EnableParallelProcessing = parallel
	cfg.CashflowAggregator.NumWorkers = 4
	cfg.CashflowAggregator.ParallelThreshold = 1
	cfg.CashflowAggregator.Granularity = config.GranularityYearly

	cap := allocator.Allocate(cfg)
	provider := tls.NewMockProvider(42)
	portfolio, err := loans.Generate(cfg, cap, provider, rng.New(42, "run-1"), cfg.VintageYear, 0)
	require.NoError(t, err)

	paths, _, err := pricepath.Run(cfg, provider, nil, nil, rng.New(42, "run-1"))
	require.NoError(t, err)

	records, cancelled := exit.Simulate(cfg, portfolio, paths, cfg.FundTermYears*12, rng.New(42, "run-1"), nil)
	require.False(t, cancelled)

	return cfg, portfolio, records
}

func TestAggregateCashflowArithmetic(t *testing.T) {
	cfg, portfolio, records := buildPortfolioAndExits(t, false)
	result, _, cancelled := Aggregate(cfg, portfolio, records, nil)
	require.False(t, cancelled)
	require.NotNil(t, result)

	var cumPrior float64
	for i, p := range result.FundLevel {
		if i == 0 {
			assert.InDelta(t, p.NetCashflow, p.CumulativeCashflow, 1e-6)
		} else {
			assert.InDelta(t, cumPrior+p.NetCashflow, p.CumulativeCashflow, 1e-6)
		}
		cumPrior = p.CumulativeCashflow

		sumComponents := p.CapitalCalls + p.LoanInvestments + p.OriginationFees + p.PrincipalRepayments +
			p.InterestIncome + p.AppreciationShare + p.ManagementFees + p.FundExpenses +
			p.LeverageDraws + p.LeverageRepayments + p.LeverageInterest + p.Distributions
		assert.InDelta(t, sumComponents, p.NetCashflow, 1e-6)
	}
}

func TestAggregateCapitalCallsInPeriodZero(t *testing.T) {
	cfg, portfolio, records := buildPortfolioAndExits(t, false)
	result, _, _ := Aggregate(cfg, portfolio, records, nil)
	assert.Equal(t, -cfg.FundSize, result.FundLevel[0].CapitalCalls)
}

func TestAggregateParallelInvariance(t *testing.T) {
	cfg, portfolio, records := buildPortfolioAndExits(t, false)

	cfg.CashflowAggregator.EnableParallelProcessing = false
	seq, _, _ := Aggregate(cfg, portfolio, records, nil)

	cfg.CashflowAggregator.EnableParallelProcessing = true
	cfg.CashflowAggregator.NumWorkers = 8
	par, _, _ := Aggregate(cfg, portfolio, records, nil)

	require.Equal(t, len(seq.LoanLevel), len(par.LoanLevel))
	for i := range seq.LoanLevel {
		assert.Equal(t, seq.LoanLevel[i], par.LoanLevel[i])
	}
}

func TestAggregateRespectsCancellation(t *testing.T) {
	cfg, portfolio, records := buildPortfolioAndExits(t, false)
	cfg.CashflowAggregator.EnableParallelProcessing = false

	_, _, cancelled := Aggregate(cfg, portfolio, records, func() bool { return true })
	assert.True(t, cancelled)
}

func TestStakeholderCapitalCallsSplitByGPCommitment(t *testing.T) {
	cfg, portfolio, records := buildPortfolioAndExits(t, false)
	cfg.GPCommitmentPercentage = 0.05
	result, _, _ := Aggregate(cfg, portfolio, records, nil)

	assert.InDelta(t, -cfg.FundSize*0.95, result.LPLevel[0].CapitalCall, 1)
	assert.InDelta(t, -cfg.FundSize*0.05, result.GPLevel[0].CapitalCall, 1)
}

func TestDeriveAnalyticsMOICNonNegativeAndTVPIIdentity(t *testing.T) {
	cfg, portfolio, records := buildPortfolioAndExits(t, false)
	result, _, _ := Aggregate(cfg, portfolio, records, nil)

	a := Derive(result.FundLevel, cfg.HurdleRate, 0)
	assert.GreaterOrEqual(t, a.MOIC, 0.0)
	assert.InDelta(t, a.DPI+a.RVPI, a.TVPI, 1e-9)
}
