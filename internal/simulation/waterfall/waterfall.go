// Package waterfall implements the distribution waterfall engine, module 9
// of the pipeline, grounded on
// original src/waterfall_engine/waterfall_engine.py's European/American
// cascade and clawback logic.
package waterfall

import (
	"math"

	"github.com/equihomepartners/core-engine/internal/simulation/cashflow"
	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/loans"
	apperrors "github.com/equihomepartners/core-engine/pkg/errors"
)

// Tier mirrors the source's WaterfallTier enum.
type Tier string

const (
	TierReturnOfCapital Tier = "return_of_capital"
	TierPreferredReturn Tier = "preferred_return"
	TierCatchUp         Tier = "catch_up"
	TierCarriedInterest Tier = "carried_interest"
	TierResidual        Tier = "residual"
)

// Result is the waterfall module's output.
type Result struct {
	ReturnOfCapital   float64 `json:"return_of_capital"`
	PreferredReturn   float64 `json:"preferred_return"`
	CatchUp           float64 `json:"catch_up"`
	CarriedInterest   float64 `json:"carried_interest"`
	ResidualToLP      float64 `json:"residual_to_lp"`
	TotalToLP         float64 `json:"total_to_lp"`
	TotalToGP         float64 `json:"total_to_gp"`
	ClawbackAmount    float64 `json:"clawback_amount"`

	TierCashflows map[Tier]float64 `json:"tier_cashflows"`
	Deals         []DealResult     `json:"deals,omitempty"`
}

// DealResult is one loan's American-waterfall cascade outcome.
type DealResult struct {
	LoanID            string  `json:"loan_id"`
	ReturnOfCapital   float64 `json:"return_of_capital"`
	PreferredReturn   float64 `json:"preferred_return"`
	CatchUp           float64 `json:"catch_up"`
	CarriedInterest   float64 `json:"carried_interest"`
	ResidualToLP      float64 `json:"residual_to_lp"`
}

// cascade holds one pass's worth of tier amounts; both the European and
// American paths, and every multi-tier step, compute one of these.
type cascade struct {
	returnOfCapital, preferredReturn, catchUp, carriedInterest, residual float64
}

// TierResult is one multi-tier waterfall step's distribution, exported for
// callers outside this package (RunMultiTier).
type TierResult struct {
	ReturnOfCapital float64 `json:"return_of_capital"`
	PreferredReturn float64 `json:"preferred_return"`
	CatchUp         float64 `json:"catch_up"`
	CarriedInterest float64 `json:"carried_interest"`
	Residual        float64 `json:"residual"`
}

// Run executes the configured waterfall structure against fund-level
// cashflows (European) or loan-level cashflows (American), then applies
// clawback if enabled.
func Run(cfg *config.Configuration, fundLevel []cashflow.FundPeriod, loanLevel []cashflow.LoanEntry, portfolio []loans.Loan) (*Result, []*apperrors.AppError) {
	var advisories []*apperrors.AppError

	var result Result
	if cfg.WaterfallStructure == config.WaterfallAmerican {
		result = runAmerican(cfg, loanLevel, portfolio)
	} else {
		result = runEuropean(cfg, fundLevel)
	}

	if cfg.WaterfallEngine.EnableClawback {
		clawback, advisory := applyClawback(cfg, &result)
		result.ClawbackAmount = clawback
		if advisory != nil {
			advisories = append(advisories, advisory)
		}
	}

	return &result, advisories
}

func netFundCashflow(fundLevel []cashflow.FundPeriod) (inflows, outflows float64) {
	for _, p := range fundLevel {
		inflows += p.PrincipalRepayments + p.InterestIncome + p.AppreciationShare + p.OriginationFees
		outflows += -p.LoanInvestments + -p.ManagementFees + -p.FundExpenses
	}
	return
}

func runEuropean(cfg *config.Configuration, fundLevel []cashflow.FundPeriod) Result {
	gpCommitment := cfg.FundSize * cfg.GPCommitmentPercentage
	lpCommitment := cfg.FundSize - gpCommitment

	inflows, outflows := netFundCashflow(fundLevel)
	netCashflow := inflows - outflows

	c := runCascade(cfg.HurdleRate, cfg.CarriedInterestRate, cfg.CatchUpRate, lpCommitment, netCashflow, float64(cfg.FundTermYears))

	return Result{
		ReturnOfCapital: c.returnOfCapital,
		PreferredReturn: c.preferredReturn,
		CatchUp:         c.catchUp,
		CarriedInterest: c.carriedInterest,
		ResidualToLP:    c.residual,
		TotalToLP:       c.returnOfCapital + c.preferredReturn + c.residual,
		TotalToGP:       c.catchUp + c.carriedInterest,
		TierCashflows: map[Tier]float64{
			TierReturnOfCapital: c.returnOfCapital,
			TierPreferredReturn: c.preferredReturn,
			TierCatchUp:         c.catchUp,
			TierCarriedInterest: c.carriedInterest,
			TierResidual:        c.residual,
		},
	}
}

// runCascade applies return-of-capital, preferred return, catch-up, and
// carry to netCashflow given one committed-capital base and holding
// period (in years), the single cascade both European (whole fund) and
// American (per deal) waterfalls reduce to.
func runCascade(hurdleRate, carriedInterestRate, catchUpRate, commitment, netCashflow, years float64) cascade {
	var c cascade

	c.returnOfCapital = math.Min(commitment, netCashflow)
	remaining := netCashflow - c.returnOfCapital

	preferredReturn := commitment * (math.Pow(1+hurdleRate, years) - 1)
	c.preferredReturn = math.Min(preferredReturn, remaining)
	remaining -= c.preferredReturn

	if catchUpRate > 0 && remaining > 0 {
		totalProfit := netCashflow - c.returnOfCapital
		targetGPProfit := totalProfit * carriedInterestRate
		c.catchUp = math.Min(remaining, targetGPProfit/catchUpRate)
		remaining -= c.catchUp
	}

	c.carriedInterest = remaining * carriedInterestRate
	c.residual = remaining - c.carriedInterest

	return c
}

func runAmerican(cfg *config.Configuration, loanLevel []cashflow.LoanEntry, portfolio []loans.Loan) Result {
	byLoan := make(map[string][]cashflow.LoanEntry)
	for _, e := range loanLevel {
		byLoan[e.LoanID] = append(byLoan[e.LoanID], e)
	}
	termByLoan := make(map[string]float64, len(portfolio))
	for _, l := range portfolio {
		termByLoan[l.LoanID] = l.TermYears
	}

	var total Result
	total.TierCashflows = map[Tier]float64{}
	deals := make([]DealResult, 0, len(byLoan))

	for loanID, entries := range byLoan {
		var invested, returned float64
		for _, e := range entries {
			if e.CapitalInvested != 0 {
				invested += -e.CapitalInvested
			} else {
				returned += e.Total
			}
		}
		if invested == 0 {
			continue
		}

		years := termByLoan[loanID]
		if years <= 0 {
			years = cfg.AvgLoanTermYears
		}

		c := runCascade(cfg.HurdleRate, cfg.CarriedInterestRate, cfg.CatchUpRate, invested, returned, years)

		deals = append(deals, DealResult{
			LoanID: loanID, ReturnOfCapital: c.returnOfCapital, PreferredReturn: c.preferredReturn,
			CatchUp: c.catchUp, CarriedInterest: c.carriedInterest, ResidualToLP: c.residual,
		})

		total.ReturnOfCapital += c.returnOfCapital
		total.PreferredReturn += c.preferredReturn
		total.CatchUp += c.catchUp
		total.CarriedInterest += c.carriedInterest
		total.ResidualToLP += c.residual
	}

	total.TotalToLP = total.ReturnOfCapital + total.PreferredReturn + total.ResidualToLP
	total.TotalToGP = total.CatchUp + total.CarriedInterest
	total.TierCashflows[TierReturnOfCapital] = total.ReturnOfCapital
	total.TierCashflows[TierPreferredReturn] = total.PreferredReturn
	total.TierCashflows[TierCatchUp] = total.CatchUp
	total.TierCashflows[TierCarriedInterest] = total.CarriedInterest
	total.TierCashflows[TierResidual] = total.ResidualToLP
	total.Deals = deals

	return total
}

// applyClawback transfers any carried interest in excess of GP's entitled
// share (on total fund profit after preferred return) from GP residual to
// LP. Total distributed is unchanged; only the split shifts.
func applyClawback(cfg *config.Configuration, result *Result) (float64, *apperrors.AppError) {
	totalProfit := result.TotalToLP + result.TotalToGP - result.ReturnOfCapital - result.PreferredReturn
	if totalProfit <= 0 {
		return 0, nil
	}

	entitledCarry := totalProfit * cfg.CarriedInterestRate
	actualCarry := result.CarriedInterest + result.CatchUp
	excess := actualCarry - entitledCarry

	if excess <= cfg.WaterfallEngine.ClawbackThreshold {
		return 0, nil
	}

	transfer := excess - cfg.WaterfallEngine.ClawbackThreshold
	if transfer > result.TotalToGP {
		transfer = result.TotalToGP
	}

	result.TotalToGP -= transfer
	result.ResidualToLP += transfer
	result.TotalToLP += transfer
	result.TierCashflows[TierResidual] = result.ResidualToLP

	return transfer, apperrors.New(apperrors.GuardrailAdvisory, "clawback applied: GP carried interest exceeded entitlement").
		WithModule("waterfall_engine").WithContext("clawback_amount", transfer)
}

// RunMultiTier applies a list of tiers in order to residual cash, each
// with its own hurdle and split, implementing the optional multi-tier
// variant of a waterfall.
func RunMultiTier(cfg *config.Configuration, netCashflow, commitment float64) []TierResult {
	out := make([]TierResult, 0, len(cfg.WaterfallEngine.Tiers))
	remaining := netCashflow

	for _, tier := range cfg.WaterfallEngine.Tiers {
		c := runCascade(tier.HurdleRate, tier.CarriedSplit, 0, commitment, remaining, float64(cfg.FundTermYears))
		out = append(out, TierResult{
			ReturnOfCapital: c.returnOfCapital,
			PreferredReturn: c.preferredReturn,
			CatchUp:         c.catchUp,
			CarriedInterest: c.carriedInterest,
			Residual:        c.residual,
		})
		remaining = c.residual
	}

	return out
}
