package cashflow

import (
	"github.com/equihomepartners/core-engine/pkg/financial"
)

// Analytics holds the fund-level derived metrics computed once cashflow
// aggregation completes.
type Analytics struct {
	IRR                float64 `json:"irr"`
	IRRConverged       bool    `json:"irr_converged"`
	MOIC               float64 `json:"moic"`
	TVPI               float64 `json:"tvpi"`
	DPI                float64 `json:"dpi"`
	RVPI               float64 `json:"rvpi"`
	PaybackPeriod      float64 `json:"payback_period"`
	PaybackAchieved    bool    `json:"payback_achieved"`
	NPV                float64 `json:"npv"`
	ProfitabilityIndex float64 `json:"profitability_index"`
}

// netCashflows extracts the fund-level net cashflow series.
func netCashflows(periods []FundPeriod) []float64 {
	out := make([]float64, len(periods))
	for i, p := range periods {
		out[i] = p.NetCashflow
	}
	return out
}

// Derive computes Analytics from fund-level periods. nav is the residual
// net asset value attributable to undistributed/unexited positions at the
// end of the observation window (0 once the fund is fully wound down).
func Derive(periods []FundPeriod, discountRate, nav float64) Analytics {
	cfs := netCashflows(periods)

	var paidIn float64
	var distributed float64
	for _, cf := range cfs {
		if cf < 0 {
			paidIn += -cf
		} else {
			distributed += cf
		}
	}

	a := Analytics{NPV: financial.NPV(discountRate, cfs)}

	if irr, ok := financial.IRR(cfs, 0.1); ok {
		a.IRR = irr
		a.IRRConverged = true
	}

	if paidIn > 0 {
		a.MOIC = distributed / paidIn
		a.DPI = distributed / paidIn
		a.RVPI = nav / paidIn
		a.TVPI = a.DPI + a.RVPI
		a.ProfitabilityIndex = (a.NPV + paidIn) / paidIn
	}

	if pb, ok := financial.PaybackPeriod(cfs); ok {
		a.PaybackPeriod = pb
		a.PaybackAchieved = true
	}

	return a
}

// YearlySeries is one year's TVPI/DPI/RVPI/IRR snapshot using only
// cashflows realized through that year.
type YearlySeries struct {
	Year int     `json:"year"`
	TVPI float64 `json:"tvpi"`
	DPI  float64 `json:"dpi"`
	RVPI float64 `json:"rvpi"`
	IRR  float64 `json:"irr"`
}

// PerYear buckets fund-level periods into calendar years (assuming
// equal-length periods per year, per periodsPerYear) and reports the
// cumulative analytics snapshot at the end of each year.
func PerYear(periods []FundPeriod, stepsPerYear int, discountRate float64, navAtYearEnd func(year int) float64) []YearlySeries {
	if stepsPerYear <= 0 {
		stepsPerYear = 1
	}
	numYears := (len(periods) + stepsPerYear - 1) / stepsPerYear
	out := make([]YearlySeries, 0, numYears)

	for year := 0; year < numYears; year++ {
		end := (year + 1) * stepsPerYear
		if end > len(periods) {
			end = len(periods)
		}
		nav := 0.0
		if navAtYearEnd != nil {
			nav = navAtYearEnd(year)
		}
		analytics := Derive(periods[:end], discountRate, nav)
		out = append(out, YearlySeries{Year: year, TVPI: analytics.TVPI, DPI: analytics.DPI, RVPI: analytics.RVPI, IRR: analytics.IRR})
	}
	return out
}
