// Package cashflow implements the cashflow aggregator, module 8 of the
// pipeline: builds loan-, fund-, and stakeholder-level
// cashflow rows in one pass, optionally parallelizing loan-level
// construction via internal/workerpool, grounded on the structure of
// the source's cashflow_aggregator.py.
package cashflow

import (
	"sort"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/exit"
	"github.com/equihomepartners/core-engine/internal/simulation/loans"
	"github.com/equihomepartners/core-engine/internal/workerpool"
	apperrors "github.com/equihomepartners/core-engine/pkg/errors"
)

// LoanEntry is one dated cashflow event for a single loan (origination or
// exit).
type LoanEntry struct {
	LoanID            string  `json:"loan_id"`
	RelativeYear       int     `json:"relative_year"`
	Month              int     `json:"month"`
	CapitalInvested    float64 `json:"capital_invested"`
	OriginationFee     float64 `json:"origination_fee"`
	Principal          float64 `json:"principal"`
	AccruedInterest    float64 `json:"accrued_interest"`
	AppreciationShare  float64 `json:"appreciation_share"`
	Total              float64 `json:"total"`
}

// FundPeriod is one bucket of the fund-level cashflow statement.
type FundPeriod struct {
	Period               int     `json:"period"`
	CapitalCalls         float64 `json:"capital_calls"`
	LoanInvestments      float64 `json:"loan_investments"`
	OriginationFees      float64 `json:"origination_fees"`
	PrincipalRepayments  float64 `json:"principal_repayments"`
	InterestIncome       float64 `json:"interest_income"`
	AppreciationShare    float64 `json:"appreciation_share"`
	ManagementFees       float64 `json:"management_fees"`
	FundExpenses         float64 `json:"fund_expenses"`
	LeverageDraws        float64 `json:"leverage_draws"`
	LeverageRepayments   float64 `json:"leverage_repayments"`
	LeverageInterest     float64 `json:"leverage_interest"`
	Distributions        float64 `json:"distributions"`
	NetCashflow          float64 `json:"net_cashflow"`
	CumulativeCashflow   float64 `json:"cumulative_cashflow"`
}

// StakeholderRow is one LP or GP bucket-aligned cashflow row.
type StakeholderRow struct {
	Period          int     `json:"period"`
	CapitalCall     float64 `json:"capital_call"`
	ManagementFees  float64 `json:"management_fees"`
	OriginationFees float64 `json:"origination_fees"`
	Distributions   float64 `json:"distributions"`
	NetCashflow     float64 `json:"net_cashflow"`
}

// Result is the aggregator's full output.
type Result struct {
	LoanLevel    []LoanEntry
	FundLevel    []FundPeriod
	LPLevel      []StakeholderRow
	GPLevel      []StakeholderRow
}

const originationFeeRate = 0.01
const cancellationCheckInterval = 100

// periodsPerYear returns the bucket count per fund year for a granularity.
func periodsPerYear(g config.TimeGranularity) int {
	switch g {
	case config.GranularityMonthly:
		return 12
	case config.GranularityQuarterly:
		return 4
	default:
		return 1
	}
}

// Aggregate builds the three cashflow levels. exits may omit loans that
// have not exited by fund end (those contribute only their origination
// entry). The waterfall module's distribution splits are not injected
// here; Aggregate writes bucket-level totals the waterfall module later
// consumes and supplements with carried-interest splits.
func Aggregate(cfg *config.Configuration, portfolio []loans.Loan, exits []exit.Record, cancelled func() bool) (*Result, []*apperrors.AppError, bool) {
	var advisories []*apperrors.AppError

	exitByLoan := make(map[string]exit.Record, len(exits))
	for _, e := range exits {
		exitByLoan[e.LoanID] = e
	}

	numWorkers := cfg.CashflowAggregator.NumWorkers
	if !cfg.CashflowAggregator.EnableParallelProcessing || len(portfolio) <= cfg.CashflowAggregator.ParallelThreshold {
		numWorkers = 1
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	if cancelled != nil && numWorkers == 1 {
		for i := range portfolio {
			if i%cancellationCheckInterval == 0 && cancelled() {
				return nil, nil, true
			}
		}
	}

	perLoanEntries := workerpool.Map(portfolio, numWorkers, func(loan loans.Loan, _ int) []LoanEntry {
		return buildLoanEntries(cfg, loan, exitByLoan[loan.LoanID])
	})

	var loanLevel []LoanEntry
	var dropped int
	for _, entries := range perLoanEntries {
		for _, e := range entries {
			if e.RelativeYear < 0 || e.RelativeYear > cfg.FundTermYears {
				dropped++
				continue
			}
			loanLevel = append(loanLevel, e)
		}
	}
	if dropped > 0 {
		advisories = append(advisories, apperrors.New(apperrors.GuardrailAdvisory, "cashflow entries outside fund window were discarded").
			WithModule("cashflow_aggregator").WithContext("dropped_count", dropped))
	}

	sort.Slice(loanLevel, func(i, j int) bool {
		if loanLevel[i].LoanID != loanLevel[j].LoanID {
			return loanLevel[i].LoanID < loanLevel[j].LoanID
		}
		return loanLevel[i].Month < loanLevel[j].Month
	})

	numPeriods := cfg.FundTermYears*periodsPerYear(cfg.CashflowAggregator.Granularity) + 1
	fundLevel := buildFundLevel(cfg, loanLevel, numPeriods)
	lpLevel, gpLevel := buildStakeholderLevel(cfg, fundLevel)

	return &Result{
		LoanLevel: loanLevel,
		FundLevel: fundLevel,
		LPLevel:   lpLevel,
		GPLevel:   gpLevel,
	}, advisories, false
}

func buildLoanEntries(cfg *config.Configuration, loan loans.Loan, ex exit.Record) []LoanEntry {
	originYear := loan.OriginationYear - cfg.VintageYear
	entries := []LoanEntry{
		{
			LoanID:          loan.LoanID,
			RelativeYear:    originYear,
			Month:           loan.OriginationMonth,
			CapitalInvested: -loan.LoanSize,
			OriginationFee:  loan.LoanSize * originationFeeRate,
			Total:           -loan.LoanSize + loan.LoanSize*originationFeeRate,
		},
	}

	if ex.LoanID == "" {
		return entries
	}

	exitYear := cfg.VintageYear + ex.ExitMonth/12 - cfg.VintageYear
	entries = append(entries, LoanEntry{
		LoanID:            loan.LoanID,
		RelativeYear:      exitYear,
		Month:             ex.ExitMonth,
		Principal:         ex.Principal,
		AccruedInterest:   ex.AccruedInterest,
		AppreciationShare: ex.AppreciationShare,
		Total:             ex.Principal + ex.AccruedInterest + ex.AppreciationShare,
	})
	return entries
}

func buildFundLevel(cfg *config.Configuration, loanLevel []LoanEntry, numPeriods int) []FundPeriod {
	periods := make([]FundPeriod, numPeriods)
	for i := range periods {
		periods[i].Period = i
	}
	periods[0].CapitalCalls = -cfg.FundSize

	stepsPerYear := periodsPerYear(cfg.CashflowAggregator.Granularity)
	periodOf := func(e LoanEntry) int {
		idx := e.RelativeYear*stepsPerYear + (e.Month%12)*stepsPerYear/12
		if idx < 0 {
			idx = 0
		}
		if idx >= numPeriods {
			idx = numPeriods - 1
		}
		return idx
	}

	for _, e := range loanLevel {
		idx := periodOf(e)
		if e.CapitalInvested != 0 {
			periods[idx].LoanInvestments += e.CapitalInvested
			periods[idx].OriginationFees += e.OriginationFee
		} else {
			periods[idx].PrincipalRepayments += e.Principal
			periods[idx].InterestIncome += e.AccruedInterest
			periods[idx].AppreciationShare += e.AppreciationShare
		}
	}

	feeBase := managementFeeBase(cfg)
	for i := range periods {
		periods[i].ManagementFees = -feeBase * cfg.ManagementFeeRate / float64(stepsPerYear)
		periods[i].NetCashflow = periods[i].CapitalCalls + periods[i].LoanInvestments + periods[i].OriginationFees +
			periods[i].PrincipalRepayments + periods[i].InterestIncome + periods[i].AppreciationShare +
			periods[i].ManagementFees + periods[i].FundExpenses + periods[i].LeverageDraws +
			periods[i].LeverageRepayments + periods[i].LeverageInterest + periods[i].Distributions

		var cumPrior float64
		if i > 0 {
			cumPrior = periods[i-1].CumulativeCashflow
		}
		periods[i].CumulativeCashflow = cumPrior + periods[i].NetCashflow
	}

	return periods
}

func managementFeeBase(cfg *config.Configuration) float64 {
	switch cfg.ManagementFeeBasis {
	case config.BasisInvestedCapital, config.BasisNetAssetValue:
		return cfg.FundSize * 0.9
	default:
		return cfg.FundSize
	}
}

func buildStakeholderLevel(cfg *config.Configuration, fundLevel []FundPeriod) ([]StakeholderRow, []StakeholderRow) {
	lpShare := 1 - cfg.GPCommitmentPercentage
	lp := make([]StakeholderRow, len(fundLevel))
	gp := make([]StakeholderRow, len(fundLevel))

	for i, period := range fundLevel {
		lp[i] = StakeholderRow{Period: period.Period}
		gp[i] = StakeholderRow{Period: period.Period}

		if i == 0 {
			lp[i].CapitalCall = period.CapitalCalls * lpShare
			gp[i].CapitalCall = period.CapitalCalls * (1 - lpShare)
		}

		gp[i].ManagementFees = -period.ManagementFees
		gp[i].OriginationFees = period.OriginationFees

		lp[i].NetCashflow = lp[i].CapitalCall
		gp[i].NetCashflow = gp[i].CapitalCall + gp[i].ManagementFees + gp[i].OriginationFees
	}

	return lp, gp
}
