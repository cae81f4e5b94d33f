package risk

import (
	"github.com/equihomepartners/core-engine/internal/simulation/cashflow"
	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/pkg/financial"
)

// Shock is one combined stress scenario's parameter deltas: property
// value, interest rate, default rate, and liquidity shocks applied
// together.
type Shock struct {
	Name             string  `json:"name"`
	PropertyValuePct float64 `json:"property_value_pct"`
	InterestRateDelta float64 `json:"interest_rate_delta"`
	DefaultRateDelta  float64 `json:"default_rate_delta"`
	LiquidityDelta    float64 `json:"liquidity_delta"`
}

// StressResult is one scenario's re-derived headline metrics.
type StressResult struct {
	Scenario  string  `json:"scenario"`
	IRR       float64 `json:"irr"`
	MOIC      float64 `json:"moic"`
	ROI       float64 `json:"roi"`
	MaxDrawdown float64 `json:"max_drawdown"`
	VaR95     float64 `json:"var_95"`
}

// DefaultScenarios returns the named stress scenarios the source engine
// ships, parameterized off the configured stress shock magnitudes.
func DefaultScenarios(cfg *config.Configuration) []Shock {
	return []Shock{
		{
			Name:             "mild_correction",
			PropertyValuePct: cfg.RiskMetrics.StressShockPropertyValue / 2,
			InterestRateDelta: cfg.RiskMetrics.StressShockInterestRate / 2,
			DefaultRateDelta:  cfg.RiskMetrics.StressShockDefaultRate / 2,
		},
		{
			Name:             "severe_downturn",
			PropertyValuePct: cfg.RiskMetrics.StressShockPropertyValue,
			InterestRateDelta: cfg.RiskMetrics.StressShockInterestRate,
			DefaultRateDelta:  cfg.RiskMetrics.StressShockDefaultRate,
		},
		{
			Name:             "rate_shock",
			InterestRateDelta: cfg.RiskMetrics.StressShockInterestRate * 2,
		},
		{
			Name:             "liquidity_crunch",
			LiquidityDelta: -0.3,
		},
	}
}

// StressTests re-derives headline fund metrics under each shock by
// scaling realized cashflow entries directly: appreciation share scales
// with (1+property_value_pct), interest income scales with
// (1+interest_rate_delta), and every principal repayment scales by
// (1-default_rate_delta) — an approximation that avoids
// re-running the full pipeline per scenario (documented in DESIGN.md as
// the Open Question 4 resolution).
func StressTests(in Inputs, shocks []Shock) []StressResult {
	if in.Cashflows == nil {
		return nil
	}

	out := make([]StressResult, 0, len(shocks))
	for _, shock := range shocks {
		periods := shockPeriods(in.Cashflows.FundLevel, shock)

		var cfs, values []float64
		var cum float64
		for _, p := range periods {
			cfs = append(cfs, p.NetCashflow)
			cum += p.NetCashflow
			values = append(values, cum)
		}

		a := cashflow.Derive(periods, in.Config.HurdleRate, 0)
		roi, _ := financial.ROI(cfs)
		maxDD := financial.MaxDrawdown(values)

		var varEstimate float64
		if len(in.MonteCarloReturns) > 0 {
			varEstimate = financial.VaR(in.MonteCarloReturns, 0.95) * (1 - shock.PropertyValuePct)
		} else {
			varEstimate = financial.AnalyticVaR(0.95, 0.0, 0.15, float64(in.Config.FundTermYears)) * (1 - shock.PropertyValuePct)
		}

		out = append(out, StressResult{
			Scenario:    shock.Name,
			IRR:         a.IRR,
			MOIC:        a.MOIC,
			ROI:         roi,
			MaxDrawdown: maxDD,
			VaR95:       varEstimate,
		})
	}
	return out
}

// shockPeriods applies a shock's multipliers to a copy of periods: property
// value shock scales appreciation share, interest rate shock scales
// interest income, default rate shock scales down principal repayments
// (proxy for higher realized losses).
func shockPeriods(periods []cashflow.FundPeriod, shock Shock) []cashflow.FundPeriod {
	out := make([]cashflow.FundPeriod, len(periods))
	copy(out, periods)

	for i := range out {
		out[i].AppreciationShare *= 1 + shock.PropertyValuePct
		out[i].InterestIncome *= 1 + shock.InterestRateDelta
		out[i].PrincipalRepayments *= 1 - shock.DefaultRateDelta

		out[i].NetCashflow = out[i].CapitalCalls + out[i].LoanInvestments + out[i].OriginationFees +
			out[i].PrincipalRepayments + out[i].InterestIncome + out[i].AppreciationShare +
			out[i].ManagementFees + out[i].FundExpenses + out[i].LeverageDraws +
			out[i].LeverageRepayments + out[i].LeverageInterest + out[i].Distributions

		var cumPrior float64
		if i > 0 {
			cumPrior = out[i-1].CumulativeCashflow
		}
		out[i].CumulativeCashflow = cumPrior + out[i].NetCashflow
	}

	return out
}
