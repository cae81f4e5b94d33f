// Package loans generates the fund's loan portfolio from per-zone capital
// budgets, module 4 of the pipeline. Grounded on the
// truncated-normal sampling pattern shared with internal/simulation/rng
// and the TLS suburb/property assignment contract of internal/simulation/tls.
package loans

import (
	"fmt"
	"sort"

	"github.com/equihomepartners/core-engine/internal/simulation/allocator"
	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/rng"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	apperrors "github.com/equihomepartners/core-engine/pkg/errors"
)

// Loan is one fund loan.
type Loan struct {
	LoanID           string      `json:"loan_id"`
	LoanSize         float64     `json:"loan_size"`
	LTV              float64     `json:"ltv"`
	Zone             config.Zone `json:"zone"`
	TermYears        float64     `json:"term_years"`
	InterestRate     float64     `json:"interest_rate"`
	OriginationYear  int         `json:"origination_year"`
	OriginationMonth int         `json:"origination_month"`
	PropertyValue    float64     `json:"property_value"`
	PropertyID       string      `json:"property_id"`
	SuburbID         string      `json:"suburb_id"`

	PropertyType    string  `json:"property_type"`
	BaseValue       float64 `json:"base_value"`
	ReinvestmentGen bool    `json:"reinvestment_generation,omitempty"`
}

// zoneBudgetTolerance is the "within 1%" slack allowed when
// filling a zone's capital budget with discrete loan sizes.
const zoneBudgetTolerance = 0.01

// sequence hands out monotonically increasing loan ids across both the
// initial portfolio and every subsequent reinvestment batch within one run.
type sequence struct{ next int }

func (s *sequence) id() string {
	s.next++
	return fmt.Sprintf("loan-%06d", s.next)
}

// Generate produces the fund's initial loan portfolio, consuming cap (from
// the capital allocator) and provider (TLS). Every initial loan originates
// at originYear/originMonth (fund inception).
func Generate(cfg *config.Configuration, cap allocator.CapitalByZone, provider tls.Provider, stream *rng.Stream, originYear, originMonth int) ([]Loan, error) {
	seq := &sequence{}
	var loans []Loan

	for _, zone := range config.Zones {
		budget := cap[zone]
		suburbs := provider.SuburbsByZone(zone)
		if len(suburbs) == 0 {
			return nil, apperrors.New(apperrors.AllocationInfeasible, "no suburbs available for zone "+string(zone)).
				WithModule("loan_generator").WithContext("zone", string(zone))
		}

		zoneLoans, err := fillZone(cfg, zone, budget, suburbs, stream, seq, originYear, originMonth)
		if err != nil {
			return nil, err
		}
		if len(zoneLoans) == 0 {
			return nil, apperrors.New(apperrors.AllocationInfeasible, "zone budget insufficient to place any loan").
				WithModule("loan_generator").WithContext("zone", string(zone)).WithContext("budget", budget)
		}
		loans = append(loans, zoneLoans...)
	}

	sort.Slice(loans, func(i, j int) bool { return loans[i].LoanID < loans[j].LoanID })
	return loans, nil
}

func fillZone(cfg *config.Configuration, zone config.Zone, budget float64, suburbs []tls.SuburbData, stream *rng.Stream, seq *sequence, originYear, originMonth int) ([]Loan, error) {
	var out []Loan
	var spent float64
	suburbIdx := 0

	for budget-spent >= cfg.MinLoanSize {
		remaining := budget - spent
		size := stream.TruncatedNormal(cfg.AvgLoanSize, cfg.LoanSizeStdDev, cfg.MinLoanSize, cfg.MaxLoanSize)
		if size > remaining {
			size = remaining
		}
		if size < cfg.MinLoanSize {
			break
		}

		ltv := stream.TruncatedNormal(cfg.AvgLoanLTV, cfg.LTVStdDev, cfg.MinLTV, cfg.MaxLTV)
		propertyValue := size / ltv

		// Round-robin through suburbs with bounded RNG jitter so repeated
		// runs with the same seed are deterministic.
		suburb := suburbs[(suburbIdx+stream.Intn(3))%len(suburbs)]
		suburbIdx = (suburbIdx + 1) % len(suburbs)
		if len(suburb.Properties) == 0 {
			return nil, apperrors.New(apperrors.AllocationInfeasible, "suburb has no properties").
				WithModule("loan_generator").WithContext("suburb_id", suburb.SuburbID)
		}
		property := suburb.Properties[stream.Intn(len(suburb.Properties))]

		out = append(out, Loan{
			LoanID:           seq.id(),
			LoanSize:         size,
			LTV:              ltv,
			Zone:             zone,
			TermYears:        cfg.AvgLoanTermYears,
			InterestRate:     cfg.AvgLoanInterestRate,
			OriginationYear:  originYear,
			OriginationMonth: originMonth,
			PropertyValue:    propertyValue,
			PropertyID:       property.PropertyID,
			SuburbID:         suburb.SuburbID,
			PropertyType:     property.PropertyType,
			BaseValue:        property.BaseValue,
		})
		spent += size

		if spent >= budget*(1-zoneBudgetTolerance) {
			break
		}
	}

	return out, nil
}

// Sequencer hands out ids across a Generate call and subsequent
// GenerateReinvestment calls within the same run, so no two loans in a run
// ever share an id.
type Sequencer struct{ seq sequence }

// NewSequencer seeds a Sequencer from the highest loan index already used
// (0 for a fresh portfolio).
func NewSequencer(startFrom int) *Sequencer {
	return &Sequencer{seq: sequence{next: startFrom}}
}

// GenerateReinvestment produces new loans whose aggregate size equals cash,
// split across zones by targetWeights (already bias-adjusted by the
// reinvestment engine), reusing the same per-attribute sampling as the
// initial portfolio.
func (s *Sequencer) GenerateReinvestment(cfg *config.Configuration, cash float64, targetWeights map[config.Zone]float64, provider tls.Provider, stream *rng.Stream, originYear, originMonth int) ([]Loan, error) {
	var out []Loan

	for _, zone := range config.Zones {
		w := targetWeights[zone]
		if w <= 0 {
			continue
		}
		budget := cash * w
		if budget < cfg.MinLoanSize {
			continue
		}
		suburbs := provider.SuburbsByZone(zone)
		if len(suburbs) == 0 {
			continue
		}

		zoneLoans, err := fillZone(cfg, zone, budget, suburbs, stream, &s.seq, originYear, originMonth)
		if err != nil {
			return nil, err
		}
		for i := range zoneLoans {
			zoneLoans[i].ReinvestmentGen = true
		}
		out = append(out, zoneLoans...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LoanID < out[j].LoanID })
	return out, nil
}

// HighestSequence reports the largest numeric suffix used across loans, so
// a Sequencer can be re-seeded for a later call.
func HighestSequence(all []Loan) int {
	max := 0
	for _, l := range all {
		var n int
		if _, err := fmt.Sscanf(l.LoanID, "loan-%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max
}
