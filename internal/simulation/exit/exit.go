// Package exit implements the exit simulator, module 6 of the pipeline:
// per-loan monthly exit hazard, categorical exit-type draw, and
// exit-value computation under sale/refinance/default/term-completion.
package exit

import (
	"sort"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/loans"
	"github.com/equihomepartners/core-engine/internal/simulation/pricepath"
	"github.com/equihomepartners/core-engine/internal/simulation/rng"
)

// Type enumerates how a loan left the portfolio.
type Type string

const (
	TypeSale           Type = "sale"
	TypeRefinance      Type = "refinance"
	TypeDefault        Type = "default"
	TypeTermCompletion Type = "term_completion"
)

// Record is one loan's exit outcome.
type Record struct {
	LoanID              string  `json:"loan_id"`
	ExitMonth           int     `json:"exit_month"`
	ExitType            Type    `json:"exit_type"`
	ExitValue           float64 `json:"exit_value"`
	Principal           float64 `json:"principal"`
	AccruedInterest     float64 `json:"accrued_interest"`
	AppreciationShare   float64 `json:"appreciation_share"`
}

const cancellationCheckInterval = 100

// Simulate computes one exit Record per loan. cancelled is polled every
// cancellationCheckInterval loans; it returns (nil, true) immediately if
// triggered.
func Simulate(cfg *config.Configuration, portfolio []loans.Loan, paths *pricepath.Result, fundTermMonths int, stream *rng.Stream, cancelled func() bool) ([]Record, bool) {
	records := make([]Record, 0, len(portfolio))

	for i, loan := range portfolio {
		if i%cancellationCheckInterval == 0 && cancelled != nil && cancelled() {
			return nil, true
		}
		records = append(records, simulateLoan(cfg, loan, paths, fundTermMonths, stream.Child(i)))
	}

	sort.Slice(records, func(i, j int) bool { return records[i].LoanID < records[j].LoanID })
	return records, false
}

func simulateLoan(cfg *config.Configuration, loan loans.Loan, paths *pricepath.Result, fundTermMonths int, stream *rng.Stream) Record {
	maxHoldMonths := int(cfg.ExitSimulator.MaxHoldPeriodYears * 12)
	lastMonth := loan.OriginationMonth + maxHoldMonths
	if lastMonth > fundTermMonths {
		lastMonth = fundTermMonths
	}

	exitMonth := lastMonth
	exited := false

	for m := loan.OriginationMonth + cfg.ExitSimulator.MinHoldPeriodMonths; m <= lastMonth; m++ {
		holdMonths := m - loan.OriginationMonth
		timeFactor := float64(holdMonths) / (cfg.AvgLoanTermYears * 12)

		ratio := indexRatio(paths, loan.PropertyID, loan.OriginationMonth, m)
		priceFactor := priceFactorOf(ratio)

		hazard := cfg.ExitSimulator.BaseExitRate * timeFactor * priceFactor / 12
		if hazard < 0 {
			hazard = 0
		}
		if hazard > 0.999 {
			hazard = 0.999
		}

		if stream.Bernoulli(hazard) {
			exitMonth = m
			exited = true
			break
		}
	}

	var exitType Type
	if !exited {
		exitType = TypeTermCompletion
	} else {
		exitType = drawExitType(cfg, loan, paths, exitMonth, stream)
	}

	return buildRecord(cfg, loan, paths, exitMonth, exitType)
}

func indexRatio(paths *pricepath.Result, propertyID string, originMonth, month int) float64 {
	series, ok := paths.Property[propertyID]
	if !ok || len(series) == 0 {
		return 1.0
	}
	clampedOrigin := clampIndex(originMonth, len(series))
	clampedMonth := clampIndex(month, len(series))
	base := series[clampedOrigin]
	if base == 0 {
		return 1.0
	}
	return series[clampedMonth] / base
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// priceFactorOf increases exit hazard when the property has appreciated
// meaningfully and decreases it when underwater, modeling owners' greater
// willingness to sell into gains.
func priceFactorOf(ratio float64) float64 {
	if ratio <= 0 {
		return 0.5
	}
	factor := 1.0 + (ratio-1.0)*1.5
	if factor < 0.3 {
		return 0.3
	}
	if factor > 3.0 {
		return 3.0
	}
	return factor
}

func drawExitType(cfg *config.Configuration, loan loans.Loan, paths *pricepath.Result, exitMonth int, stream *rng.Stream) Type {
	ratio := indexRatio(paths, loan.PropertyID, loan.OriginationMonth, exitMonth)

	saleW := cfg.ExitSimulator.SaleWeight
	refiW := cfg.ExitSimulator.RefinanceWeight
	defaultW := cfg.ExitSimulator.DefaultWeight

	switch {
	case ratio > 1.15:
		saleW *= 1.8
	case ratio < 0.95:
		refiW *= 1.5
	}

	stressLTV := loan.LTV / ratio
	if stressLTV > cfg.MaxLTV*cfg.ExitSimulator.RecessionMultiplier {
		defaultW *= 2.0
	}

	idx := stream.Categorical([]float64{saleW, refiW, defaultW})
	switch idx {
	case 0:
		return TypeSale
	case 1:
		return TypeRefinance
	default:
		return TypeDefault
	}
}

func buildRecord(cfg *config.Configuration, loan loans.Loan, paths *pricepath.Result, exitMonth int, exitType Type) Record {
	ratio := indexRatio(paths, loan.PropertyID, loan.OriginationMonth, exitMonth)
	propertyValueAtExit := loan.PropertyValue * ratio
	holdYears := float64(exitMonth-loan.OriginationMonth) / 12
	loanBalance := loan.LoanSize
	accruedInterest := loan.LoanSize * loan.InterestRate * holdYears

	switch exitType {
	case TypeSale:
		appreciationShare := appreciationShareAmount(cfg, loan, propertyValueAtExit)
		exitValue := propertyValueAtExit - loanBalance
		return Record{
			LoanID: loan.LoanID, ExitMonth: exitMonth, ExitType: exitType,
			ExitValue: exitValue, Principal: loanBalance,
			AccruedInterest: accruedInterest, AppreciationShare: appreciationShare,
		}
	case TypeRefinance:
		return Record{
			LoanID: loan.LoanID, ExitMonth: exitMonth, ExitType: exitType,
			ExitValue: loanBalance + accruedInterest, Principal: loanBalance,
			AccruedInterest: accruedInterest, AppreciationShare: 0,
		}
	case TypeDefault:
		zoneRecovery := cfg.RecoveryRates[loan.Zone]
		exitValue := propertyValueAtExit*zoneRecovery - cfg.ExitSimulator.ForeclosureCostPct*propertyValueAtExit
		if exitValue < 0 {
			exitValue = 0
		}
		return Record{
			LoanID: loan.LoanID, ExitMonth: exitMonth, ExitType: exitType,
			ExitValue: exitValue, Principal: exitValue, AccruedInterest: 0, AppreciationShare: 0,
		}
	default: // TypeTermCompletion
		appreciationShare := appreciationShareAmount(cfg, loan, propertyValueAtExit)
		return Record{
			LoanID: loan.LoanID, ExitMonth: exitMonth, ExitType: exitType,
			ExitValue: loanBalance + accruedInterest + appreciationShare,
			Principal: loanBalance, AccruedInterest: accruedInterest, AppreciationShare: appreciationShare,
		}
	}
}

func appreciationShareAmount(cfg *config.Configuration, loan loans.Loan, propertyValueAtExit float64) float64 {
	gain := propertyValueAtExit - loan.PropertyValue
	if gain <= 0 {
		return 0
	}
	switch cfg.ExitSimulator.AppreciationShareMethod {
	case config.ShareFixed:
		return gain * cfg.ExitSimulator.FixedAppreciationShare
	case config.ShareTiered:
		switch {
		case loan.LTV >= 0.8:
			return gain * 0.3
		case loan.LTV >= 0.65:
			return gain * 0.2
		default:
			return gain * 0.1
		}
	default: // config.ShareProRataLTV
		return gain * loan.LTV
	}
}
