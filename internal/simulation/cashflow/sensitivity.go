package cashflow

// SensitivityPoint is one one-at-a-time parameter sweep result.
type SensitivityPoint struct {
	Parameter string  `json:"parameter"`
	Delta     float64 `json:"delta"`
	IRR       float64 `json:"irr"`
	MOIC      float64 `json:"moic"`
}

// Scenario is a named combination of shocked parameters.
type Scenario struct {
	Name   string             `json:"name"`
	Shocks map[string]float64 `json:"shocks"`
}

// ScenarioResult is the re-derived Analytics for one scenario.
type ScenarioResult struct {
	Scenario  string    `json:"scenario"`
	Analytics Analytics `json:"analytics"`
}

// Sensitivity runs rebuild once per (parameter, delta) pair and reports
// the resulting IRR/MOIC, letting the orchestrator perturb a configuration
// copy and re-aggregate without this package knowing about Configuration.
func Sensitivity(parameters []string, deltas []float64, rebuild func(parameter string, delta float64) ([]FundPeriod, float64)) []SensitivityPoint {
	var out []SensitivityPoint
	for _, param := range parameters {
		for _, delta := range deltas {
			periods, nav := rebuild(param, delta)
			a := Derive(periods, 0.08, nav)
			out = append(out, SensitivityPoint{Parameter: param, Delta: delta, IRR: a.IRR, MOIC: a.MOIC})
		}
	}
	return out
}

// Scenarios re-derives Analytics for each named scenario via rebuild,
// which applies the scenario's shocks and returns the resulting fund-level
// periods and terminal NAV.
func Scenarios(scenarios []Scenario, rebuild func(Scenario) ([]FundPeriod, float64)) []ScenarioResult {
	out := make([]ScenarioResult, 0, len(scenarios))
	for _, sc := range scenarios {
		periods, nav := rebuild(sc)
		out = append(out, ScenarioResult{Scenario: sc.Name, Analytics: Derive(periods, 0.08, nav)})
	}
	return out
}

// LiquiditySnapshot is one period's cash-reserve-vs-minimum check.
type LiquiditySnapshot struct {
	Period         int     `json:"period"`
	CashReserve    float64 `json:"cash_reserve"`
	MinimumReserve float64 `json:"minimum_reserve"`
	Shortfall      float64 `json:"shortfall"`
}

// Liquidity walks cumulative cashflow as a proxy cash reserve and flags
// any period where it falls below minimumReserve.
func Liquidity(periods []FundPeriod, minimumReserve float64) []LiquiditySnapshot {
	out := make([]LiquiditySnapshot, len(periods))
	for i, p := range periods {
		shortfall := 0.0
		if p.CumulativeCashflow < minimumReserve {
			shortfall = minimumReserve - p.CumulativeCashflow
		}
		out[i] = LiquiditySnapshot{Period: p.Period, CashReserve: p.CumulativeCashflow, MinimumReserve: minimumReserve, Shortfall: shortfall}
	}
	return out
}

// TaxImpact is a pre/post-tax comparison of one Analytics snapshot.
type TaxImpact struct {
	PreTaxIRR  float64 `json:"pre_tax_irr"`
	PostTaxIRR float64 `json:"post_tax_irr"`
	TaxRate    float64 `json:"tax_rate"`
}

// ApplyTax approximates post-tax IRR by scaling distributions down by
// taxRate before re-deriving IRR; a simplification documented as such,
// not a full tax-lot model.
func ApplyTax(periods []FundPeriod, taxRate float64) TaxImpact {
	preTax := Derive(periods, 0.08, 0)

	taxed := make([]FundPeriod, len(periods))
	copy(taxed, periods)
	for i := range taxed {
		if taxed[i].NetCashflow > 0 {
			taxed[i].NetCashflow *= 1 - taxRate
		}
	}
	postTax := Derive(taxed, 0.08, 0)

	return TaxImpact{PreTaxIRR: preTax.IRR, PostTaxIRR: postTax.IRR, TaxRate: taxRate}
}

// VisualizationSeries is a generic named (x, y) pair series used by the
// by-year/cumulative/heatmap/sankey visualization scaffolds; the
// orchestrator's summary builder selects which views to embed.
type VisualizationSeries struct {
	Name   string    `json:"name"`
	XLabel string    `json:"x_label"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
}

// CumulativeCashflowSeries is the canonical "cumulative" visualization.
func CumulativeCashflowSeries(periods []FundPeriod) VisualizationSeries {
	x := make([]float64, len(periods))
	y := make([]float64, len(periods))
	for i, p := range periods {
		x[i] = float64(p.Period)
		y[i] = p.CumulativeCashflow
	}
	return VisualizationSeries{Name: "cumulative_cashflow", XLabel: "period", X: x, Y: y}
}

// ByPeriodCashflowSeries is the canonical "by-year" visualization (net
// cashflow per bucket rather than cumulative).
func ByPeriodCashflowSeries(periods []FundPeriod) VisualizationSeries {
	x := make([]float64, len(periods))
	y := make([]float64, len(periods))
	for i, p := range periods {
		x[i] = float64(p.Period)
		y[i] = p.NetCashflow
	}
	return VisualizationSeries{Name: "net_cashflow_by_period", XLabel: "period", X: x, Y: y}
}
