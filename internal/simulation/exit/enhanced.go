package exit

import (
	"sort"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/loans"
	"github.com/equihomepartners/core-engine/pkg/financial"
)

// CohortKey identifies one exit cohort by vintage year, LTV band, and zone.
type CohortKey struct {
	VintageYear int         `json:"vintage_year"`
	LTVBand     string      `json:"ltv_band"`
	Zone        config.Zone `json:"zone"`
}

// CohortStats summarizes realized returns for one cohort.
type CohortStats struct {
	Count        int     `json:"count"`
	AvgReturnPct float64 `json:"avg_return_pct"`
	DefaultRate  float64 `json:"default_rate"`
}

// Diagnostics is the advisory output of the enhanced exit simulator variant
//: cohort analysis, risk metrics, and an advisory,
// non-trained feature-importance proxy. None of these gate §8 test
// correctness; see SPEC_FULL.md's resolution of the source's "enhanced"
// ML surface.
type Diagnostics struct {
	Cohorts map[CohortKey]CohortStats `json:"cohorts"`

	VaR95    float64 `json:"var_95"`
	CVaR95   *float64 `json:"cvar_95,omitempty"`
	RequiresMC bool    `json:"cvar_requires_mc"`
	StressROI float64 `json:"stress_roi"`

	FeatureImportance map[string]float64 `json:"feature_importance"`
}

// Analyze computes the enhanced variant's advisory diagnostics over the
// base exit records. monteCarloReturns, when non-empty, enables an
// empirical CVaR; otherwise CVaR is reported as requires_mc per the
// resolution of the source's `var_95 * 1.2` magic constant.
func Analyze(cfg *config.Configuration, portfolio []loans.Loan, records []Record, monteCarloReturns []float64) Diagnostics {
	byID := make(map[string]loans.Loan, len(portfolio))
	for _, l := range portfolio {
		byID[l.LoanID] = l
	}

	cohorts := make(map[CohortKey]CohortStats)
	returns := make([]float64, 0, len(records))
	var defaults, total int

	for _, r := range records {
		loan, ok := byID[r.LoanID]
		if !ok {
			continue
		}
		key := CohortKey{
			VintageYear: loan.OriginationYear,
			LTVBand:     ltvBand(loan.LTV),
			Zone:        loan.Zone,
		}
		ret := 0.0
		if loan.LoanSize > 0 {
			ret = (r.Principal + r.AccruedInterest + r.AppreciationShare - loan.LoanSize) / loan.LoanSize
		}
		returns = append(returns, ret)

		stat := cohorts[key]
		stat.Count++
		stat.AvgReturnPct += ret
		if r.ExitType == TypeDefault {
			stat.DefaultRate++
		}
		cohorts[key] = stat

		total++
		if r.ExitType == TypeDefault {
			defaults++
		}
	}

	for k, stat := range cohorts {
		if stat.Count > 0 {
			stat.AvgReturnPct /= float64(stat.Count)
			stat.DefaultRate /= float64(stat.Count)
		}
		cohorts[k] = stat
	}

	diag := Diagnostics{
		Cohorts:           cohorts,
		FeatureImportance: permutationImportanceProxy(byID, records),
	}

	if len(returns) > 0 {
		diag.VaR95 = financial.VaR(returns, 0.95)
	}
	if len(monteCarloReturns) > 0 {
		cvar := financial.CVaR(monteCarloReturns, 0.95)
		diag.CVaR95 = &cvar
	} else {
		diag.RequiresMC = true
	}

	var stressReturns float64
	if total > 0 {
		stressDefaultRate := float64(defaults) / float64(total) * (1 + cfg.RiskMetrics.StressShockDefaultRate*10)
		stressReturns = diag.VaR95 * -1 * stressDefaultRate
	}
	diag.StressROI = stressReturns

	return diag
}

func ltvBand(ltv float64) string {
	switch {
	case ltv < 0.6:
		return "low"
	case ltv < 0.75:
		return "medium"
	default:
		return "high"
	}
}

// permutationImportanceProxy is an advisory, non-trained proxy for feature
// importance: it buckets realized return variance explained by each of a
// fixed set of loan attributes via a simple grouped-variance ratio, not a
// fitted model (SPEC_FULL.md's resolution of the source's unspecified ML
// surface — advisory only, never gates correctness).
func permutationImportanceProxy(byID map[string]loans.Loan, records []Record) map[string]float64 {
	byZone := map[config.Zone][]float64{}
	byVintage := map[int][]float64{}
	byLTVBand := map[string][]float64{}

	for _, r := range records {
		loan, ok := byID[r.LoanID]
		if !ok {
			continue
		}
		ret := 0.0
		if loan.LoanSize > 0 {
			ret = (r.Principal + r.AccruedInterest + r.AppreciationShare - loan.LoanSize) / loan.LoanSize
		}
		byZone[loan.Zone] = append(byZone[loan.Zone], ret)
		byVintage[loan.OriginationYear] = append(byVintage[loan.OriginationYear], ret)
		byLTVBand[ltvBand(loan.LTV)] = append(byLTVBand[ltvBand(loan.LTV)], ret)
	}

	return map[string]float64{
		"zone":       groupedVarianceRatio(byZone),
		"ltv_band":   groupedVarianceRatioStr(byLTVBand),
		"vintage_year": groupedVarianceRatioInt(byVintage),
	}
}

func groupedVarianceRatio(groups map[config.Zone][]float64) float64 {
	flat := make([][]float64, 0, len(groups))
	for _, v := range groups {
		flat = append(flat, v)
	}
	return betweenGroupRatio(flat)
}

func groupedVarianceRatioStr(groups map[string][]float64) float64 {
	flat := make([][]float64, 0, len(groups))
	for _, v := range groups {
		flat = append(flat, v)
	}
	return betweenGroupRatio(flat)
}

func groupedVarianceRatioInt(groups map[int][]float64) float64 {
	flat := make([][]float64, 0, len(groups))
	for _, v := range groups {
		flat = append(flat, v)
	}
	return betweenGroupRatio(flat)
}

func betweenGroupRatio(groups [][]float64) float64 {
	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}
	if len(all) < 2 {
		return 0
	}
	overallMean := financial.Mean(all)
	totalVar := financial.StdDev(all)
	if totalVar == 0 {
		return 0
	}

	var betweenSS float64
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		gm := financial.Mean(g)
		d := gm - overallMean
		betweenSS += d * d * float64(len(g))
	}
	betweenVar := betweenSS / float64(len(all))
	ratio := betweenVar / (totalVar * totalVar)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// SortedCohortKeys returns keys in a stable order for deterministic output.
func SortedCohortKeys(cohorts map[CohortKey]CohortStats) []CohortKey {
	keys := make([]CohortKey, 0, len(cohorts))
	for k := range cohorts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].VintageYear != keys[j].VintageYear {
			return keys[i].VintageYear < keys[j].VintageYear
		}
		if keys[i].Zone != keys[j].Zone {
			return keys[i].Zone < keys[j].Zone
		}
		return keys[i].LTVBand < keys[j].LTVBand
	})
	return keys
}
