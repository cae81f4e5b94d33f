// Package reinvestment implements the reinvestment engine, module 7 of
// the pipeline: within the reinvestment window, recycles
// exited capital into new loans preserving target zone weights.
package reinvestment

import (
	"sort"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/exit"
	"github.com/equihomepartners/core-engine/internal/simulation/loans"
	"github.com/equihomepartners/core-engine/internal/simulation/rng"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
)

// Event records one reinvestment batch.
type Event struct {
	Month               int                    `json:"month"`
	SourceLoanIDs       []string               `json:"source_loan_ids"`
	TargetAllocations   map[config.Zone]float64 `json:"target_allocations"`
	RealizedAllocations map[config.Zone]float64 `json:"realized_allocations"`
	NewLoanIDs          []string               `json:"new_loan_ids"`
}

// Result is the reinvestment engine's output: newly generated loans and
// the events that produced them.
type Result struct {
	NewLoans []loans.Loan
	Events   []Event
}

// Run walks the reinvestment window month by month, accumulating exited
// capital from exits and converting it into new loans once it clears
// cfg.ReinvestmentEngine.MinCashThreshold.
func Run(cfg *config.Configuration, portfolio []loans.Loan, exits []exit.Record, provider tls.Provider, stream *rng.Stream) Result {
	windowEndMonth := cfg.ReinvestmentPeriodYears * 12
	if windowEndMonth <= 0 {
		return Result{}
	}

	exitedByMonth := make(map[int][]exit.Record)
	for _, e := range exits {
		if e.ExitMonth >= 0 && e.ExitMonth < windowEndMonth {
			exitedByMonth[e.ExitMonth] = append(exitedByMonth[e.ExitMonth], e)
		}
	}

	targetWeights := biasedWeights(cfg)
	seqr := loans.NewSequencer(loans.HighestSequence(portfolio))

	var result Result
	var accumulatedCash float64
	var pendingSourceIDs []string

	for month := 0; month < windowEndMonth; month++ {
		for _, e := range exitedByMonth[month] {
			accumulatedCash += e.Principal + e.AccruedInterest + e.AppreciationShare
			pendingSourceIDs = append(pendingSourceIDs, e.LoanID)
		}

		if accumulatedCash < cfg.ReinvestmentEngine.MinCashThreshold {
			continue
		}

		newLoans, err := seqr.GenerateReinvestment(cfg, accumulatedCash, targetWeights, provider, stream, cfg.VintageYear+month/12, month)
		if err != nil || len(newLoans) == 0 {
			continue
		}

		realized := make(map[config.Zone]float64)
		var newIDs []string
		for _, l := range newLoans {
			realized[l.Zone] += l.LoanSize
			newIDs = append(newIDs, l.LoanID)
		}

		result.Events = append(result.Events, Event{
			Month:               month,
			SourceLoanIDs:       append([]string(nil), pendingSourceIDs...),
			TargetAllocations:   targetWeights,
			RealizedAllocations: realized,
			NewLoanIDs:          newIDs,
		})
		result.NewLoans = append(result.NewLoans, newLoans...)

		accumulatedCash = 0
		pendingSourceIDs = nil
	}

	sort.Slice(result.NewLoans, func(i, j int) bool { return result.NewLoans[i].LoanID < result.NewLoans[j].LoanID })
	return result
}

// biasedWeights applies zone_preference_multipliers to the configured
// target zone_allocations and renormalizes.
func biasedWeights(cfg *config.Configuration) map[config.Zone]float64 {
	weights := make(map[config.Zone]float64, len(config.Zones))
	var total float64
	for _, z := range config.Zones {
		w := cfg.ZoneAllocations[z]
		if mult, ok := cfg.ReinvestmentEngine.ZonePreferenceMultipliers[z]; ok {
			w *= mult
		}
		weights[z] = w
		total += w
	}
	if total <= 0 {
		return weights
	}
	for _, z := range config.Zones {
		weights[z] /= total
	}
	return weights
}
