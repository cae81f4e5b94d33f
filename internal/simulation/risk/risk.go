// Package risk implements the risk and performance module, module 10 of
// the pipeline, grounded on the six metric groups the
// source's src/risk/risk_metrics.py computes (market/price, credit,
// liquidity, leverage, concentration, performance) and on pkg/financial's
// ported ratio formulas.
package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/equihomepartners/core-engine/internal/simulation/cashflow"
	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/exit"
	"github.com/equihomepartners/core-engine/internal/simulation/loans"
	"github.com/equihomepartners/core-engine/internal/simulation/pricepath"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	"github.com/equihomepartners/core-engine/pkg/financial"
)

// MarketPriceMetrics is the first of six metric groups.
type MarketPriceMetrics struct {
	PortfolioVolatility float64            `json:"portfolio_volatility"`
	ZoneVolatility      map[string]float64 `json:"zone_volatility"`
	Alpha               float64            `json:"alpha"`
	Beta                float64            `json:"beta"`
	ZoneBeta            map[string]float64 `json:"zone_beta"`
	VaR95               float64            `json:"var_95"`
	VaR99               float64            `json:"var_99"`
	CVaR95              float64            `json:"cvar_95"`
	CVaR99              float64            `json:"cvar_99"`
	IsApproximation     bool               `json:"is_approximation"`
}

// CreditMetrics is the second metric group.
type CreditMetrics struct {
	PortfolioLTV          float64            `json:"portfolio_ltv"`
	ZoneLTV               map[string]float64 `json:"zone_ltv"`
	SuburbLTV             map[string]float64 `json:"suburb_ltv"`
	StressLTV             float64            `json:"stress_ltv"`
	DefaultProbability    map[string]float64 `json:"default_probability_by_zone"`
	ExposureWeightedDefault float64          `json:"exposure_weighted_default_rate"`
}

// LiquidityMetrics is the third metric group.
type LiquidityMetrics struct {
	LiquidityScore    float64  `json:"liquidity_score"`
	ExpectedExitLag   float64  `json:"expected_exit_lag_months"`
	WAL               float64  `json:"weighted_average_life_years"`
	CFaR              *float64 `json:"cfar,omitempty"`
	CFaRRequiresMC    bool     `json:"cfar_requires_mc"`
}

// LeverageMetrics is the fourth metric group. The engine carries no
// leverage facility module (none is named), so draws/interest are
// always zero; these fields exist for result-schema completeness and a
// future leverage facility to populate.
type LeverageMetrics struct {
	NAVUtilisation                   float64  `json:"nav_utilisation"`
	InterestCoverage                 *float64 `json:"interest_coverage,omitempty"`
	InterestCoverageRequiresLeverage bool     `json:"interest_coverage_requires_leverage"`
	VaRUplift                        *float64 `json:"var_uplift,omitempty"`
	VaRUpliftRequiresMC              bool     `json:"var_uplift_requires_mc"`
}

// ConcentrationMetrics is the fifth metric group.
type ConcentrationMetrics struct {
	ZoneExposurePct    map[string]float64 `json:"zone_exposure_pct"`
	TopNSuburbExposure map[string]float64 `json:"top_n_suburb_exposure"`
	SingleLoanExposure float64            `json:"single_loan_exposure_pct"`
	ZoneHHI            float64            `json:"zone_hhi"`
	SuburbHHI          float64            `json:"suburb_hhi"`
}

// PerformanceMetrics is the sixth metric group.
type PerformanceMetrics struct {
	NetIRR              float64  `json:"net_irr"`
	Sharpe              float64  `json:"sharpe"`
	Sortino             float64  `json:"sortino"`
	Calmar              float64  `json:"calmar"`
	Information         float64  `json:"information"`
	Treynor             float64  `json:"treynor"`
	Omega               float64  `json:"omega"`
	Kappa               float64  `json:"kappa"`
	GainLoss            float64  `json:"gain_loss"`
	HurdleClearProb     *float64 `json:"hurdle_clear_probability,omitempty"`
	HurdleClearRequiresMC bool   `json:"hurdle_clear_requires_mc"`
}

// Result bundles the six metric groups plus stress-test results; it
// carries no sensitivity sweep.
type Result struct {
	MarketPrice   MarketPriceMetrics   `json:"market_price_metrics"`
	Credit        CreditMetrics        `json:"credit_metrics"`
	Liquidity     LiquidityMetrics     `json:"liquidity_metrics"`
	Leverage      LeverageMetrics      `json:"leverage_metrics"`
	Concentration ConcentrationMetrics `json:"concentration_metrics"`
	Performance   PerformanceMetrics   `json:"performance_metrics"`
	StressTests   []StressResult       `json:"stress_test_results"`
}

// Inputs bundles everything the risk module consumes: cashflows, price
// paths, exits, and portfolio composition.
type Inputs struct {
	Config            *config.Configuration
	Portfolio         []loans.Loan
	Exits             []exit.Record
	Paths             *pricepath.Result
	Cashflows         *cashflow.Result
	Provider          tls.Provider
	MonteCarloReturns []float64 // nil in deterministic mode
}

// Compute derives all six metric groups from in.
func Compute(in Inputs) Result {
	return Result{
		MarketPrice:   marketPrice(in),
		Credit:        credit(in),
		Liquidity:     liquidity(in),
		Leverage:      leverage(in),
		Concentration: concentration(in),
		Performance:   performance(in),
		StressTests:   StressTests(in, DefaultScenarios(in.Config)),
	}
}

func exposure(loan loans.Loan) float64 { return loan.LoanSize }

func totalExposure(portfolio []loans.Loan) float64 {
	var total float64
	for _, l := range portfolio {
		total += exposure(l)
	}
	return total
}

func marketPrice(in Inputs) MarketPriceMetrics {
	zoneVol := map[string]float64{}
	var portfolioReturns []float64

	for zone, series := range in.Paths.Zone {
		rets := logReturns(series)
		zoneVol[string(zone)] = annualize(financial.StdDev(rets), 12)
		portfolioReturns = append(portfolioReturns, rets...)
	}

	portfolioVol := annualize(financial.StdDev(portfolioReturns), 12)

	var alpha, betaSum float64
	zoneBeta := map[string]float64{}
	total := totalExposure(in.Portfolio)
	if total > 0 {
		for _, l := range in.Portfolio {
			w := exposure(l) / total
			if sd, ok := in.Provider.SuburbData(l.SuburbID); ok {
				alpha += w * sd.IdiosyncraticShare
				betaSum += w * sd.Beta
				zoneBeta[string(l.Zone)] += w * sd.ZoneBeta
			}
		}
	}

	m := MarketPriceMetrics{
		PortfolioVolatility: portfolioVol,
		ZoneVolatility:      zoneVol,
		Alpha:               alpha,
		Beta:                betaSum,
		ZoneBeta:            zoneBeta,
	}

	if in.MonteCarloReturns != nil {
		m.VaR95 = financial.VaR(in.MonteCarloReturns, 0.95)
		m.VaR99 = financial.VaR(in.MonteCarloReturns, 0.99)
		m.CVaR95 = financial.CVaR(in.MonteCarloReturns, 0.95)
		m.CVaR99 = financial.CVaR(in.MonteCarloReturns, 0.99)
	} else {
		years := float64(in.Config.FundTermYears)
		mu := stat.Mean(portfolioReturns, nil) * 12
		m.VaR95 = financial.AnalyticVaR(0.95, mu, portfolioVol, years)
		m.VaR99 = financial.AnalyticVaR(0.99, mu, portfolioVol, years)
		m.CVaR95 = m.VaR95
		m.CVaR99 = m.VaR99
		m.IsApproximation = true
	}

	return m
}

func logReturns(series pricepath.Series) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] <= 0 {
			continue
		}
		out = append(out, math.Log(series[i]/series[i-1]))
	}
	return out
}

func annualize(monthlyStdDev float64, periodsPerYear float64) float64 {
	return monthlyStdDev * math.Sqrt(periodsPerYear)
}

func credit(in Inputs) CreditMetrics {
	zoneLTV := map[string]float64{}
	zoneExposure := map[string]float64{}
	suburbLTV := map[string]float64{}
	suburbExposure := map[string]float64{}
	defaultProb := map[string]float64{}
	zoneCount := map[string]int{}

	var weightedLTV, totalExp float64
	var weightedDefault float64

	for _, l := range in.Portfolio {
		w := exposure(l)
		totalExp += w
		weightedLTV += l.LTV * w

		zoneLTV[string(l.Zone)] += l.LTV * w
		zoneExposure[string(l.Zone)] += w
		zoneCount[string(l.Zone)]++

		suburbLTV[l.SuburbID] += l.LTV * w
		suburbExposure[l.SuburbID] += w

		if dr, ok := in.Config.DefaultRates[l.Zone]; ok {
			weightedDefault += dr * w
		}
	}

	for z, sum := range zoneLTV {
		if zoneExposure[z] > 0 {
			zoneLTV[z] = sum / zoneExposure[z]
		}
	}
	for s, sum := range suburbLTV {
		if suburbExposure[s] > 0 {
			suburbLTV[s] = sum / suburbExposure[s]
		}
	}
	for _, z := range config.Zones {
		defaultProb[string(z)] = in.Config.DefaultRates[z]
	}

	var portfolioLTV float64
	if totalExp > 0 {
		portfolioLTV = weightedLTV / totalExp
	}

	stressShock := in.Config.RiskMetrics.StressShockPropertyValue
	stressLTV := portfolioLTV
	if 1+stressShock > 0 {
		stressLTV = portfolioLTV / (1 + stressShock)
	}

	var exposureWeightedDefault float64
	if totalExp > 0 {
		exposureWeightedDefault = weightedDefault / totalExp
	}

	return CreditMetrics{
		PortfolioLTV:            portfolioLTV,
		ZoneLTV:                 zoneLTV,
		SuburbLTV:               suburbLTV,
		StressLTV:               stressLTV,
		DefaultProbability:      defaultProb,
		ExposureWeightedDefault: exposureWeightedDefault,
	}
}

func liquidity(in Inputs) LiquidityMetrics {
	var weightedLiquidity, weightedTerm, total float64

	for _, l := range in.Portfolio {
		w := exposure(l)
		total += w
		weightedTerm += l.TermYears * w
		if sd, ok := in.Provider.SuburbData(l.SuburbID); ok {
			weightedLiquidity += sd.LiquidityScore * w
		}
	}

	var liquidityScore, wal float64
	if total > 0 {
		liquidityScore = weightedLiquidity / total
		wal = weightedTerm / total
	}

	const gammaAlpha, gammaBeta = 2.0, 6.0
	liquidityFactor := 1.0
	if liquidityScore > 0 {
		liquidityFactor = 1.5 - liquidityScore
	}
	expectedExitLag := gammaAlpha * gammaBeta * liquidityFactor

	m := LiquidityMetrics{
		LiquidityScore:  liquidityScore,
		ExpectedExitLag: expectedExitLag,
		WAL:             wal,
		CFaRRequiresMC:  true,
	}

	if len(in.MonteCarloReturns) > 0 {
		cfar := financial.VaR(in.MonteCarloReturns, 0.95)
		m.CFaR = &cfar
		m.CFaRRequiresMC = false
	}

	return m
}

func leverage(in Inputs) LeverageMetrics {
	// No leverage facility module is named, so there is no debt drawn and
	// interest coverage is undefined rather than infinite; leave it nil
	// until a leverage facility populates it.
	m := LeverageMetrics{NAVUtilisation: 0, InterestCoverageRequiresLeverage: true, VaRUpliftRequiresMC: true}
	if len(in.MonteCarloReturns) > 0 {
		uplift := 0.0
		m.VaRUplift = &uplift
		m.VaRUpliftRequiresMC = false
	}
	return m
}

func concentration(in Inputs) ConcentrationMetrics {
	total := totalExposure(in.Portfolio)
	zoneExposure := map[string]float64{}
	suburbExposure := map[string]float64{}
	var maxLoan float64

	for _, l := range in.Portfolio {
		zoneExposure[string(l.Zone)] += exposure(l)
		suburbExposure[l.SuburbID] += exposure(l)
		if exposure(l) > maxLoan {
			maxLoan = exposure(l)
		}
	}

	zonePct := map[string]float64{}
	var zoneHHI float64
	for z, exp := range zoneExposure {
		var pct float64
		if total > 0 {
			pct = exp / total
		}
		zonePct[z] = pct
		zoneHHI += pct * pct
	}

	type suburbShare struct {
		id  string
		pct float64
	}
	shares := make([]suburbShare, 0, len(suburbExposure))
	var suburbHHI float64
	for id, exp := range suburbExposure {
		var pct float64
		if total > 0 {
			pct = exp / total
		}
		shares = append(shares, suburbShare{id, pct})
		suburbHHI += pct * pct
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].pct > shares[j].pct })

	topN := in.Config.RiskMetrics.TopNConcentration
	if topN <= 0 {
		topN = 5
	}
	if topN > len(shares) {
		topN = len(shares)
	}
	topNExposure := map[string]float64{}
	for _, s := range shares[:topN] {
		topNExposure[s.id] = s.pct
	}

	var singleLoanPct float64
	if total > 0 {
		singleLoanPct = maxLoan / total
	}

	return ConcentrationMetrics{
		ZoneExposurePct:    zonePct,
		TopNSuburbExposure: topNExposure,
		SingleLoanExposure: singleLoanPct,
		ZoneHHI:            zoneHHI,
		SuburbHHI:          suburbHHI,
	}
}

func performance(in Inputs) PerformanceMetrics {
	var cfs []float64
	if in.Cashflows != nil {
		for _, p := range in.Cashflows.FundLevel {
			cfs = append(cfs, p.NetCashflow)
		}
	}

	a := cashflow.Derive(in.Cashflows.FundLevel, in.Config.HurdleRate, 0)

	monthlyReturns := periodReturns(in.Cashflows.FundLevel, in.Config.FundSize)
	riskFree := in.Config.RiskMetrics.RiskFreeRate / 12
	hurdleMonthly := in.Config.HurdleRate / 12

	sharpe, _ := financial.SharpeRatio(monthlyReturns, riskFree)
	sortino, _ := financial.SortinoRatio(monthlyReturns, hurdleMonthly)

	var values []float64
	var cum float64
	for _, cf := range cfs {
		cum += cf
		values = append(values, cum)
	}
	maxDD := financial.MaxDrawdown(values)
	calmar, _ := financial.CalmarRatio(a.IRR, maxDD)

	benchmark := make([]float64, len(monthlyReturns))
	benchmarkMonthly := in.Config.RiskMetrics.RiskFreeRate / 12
	for i := range benchmark {
		benchmark[i] = benchmarkMonthly
	}
	information, _ := financial.InformationRatio(monthlyReturns, benchmark)

	beta := 1.0
	if mp := marketPrice(in); mp.Beta != 0 {
		beta = mp.Beta
	}
	treynor, _ := financial.TreynorRatio(financial.Mean(monthlyReturns), riskFree, beta)
	omega, _ := financial.OmegaRatio(monthlyReturns, hurdleMonthly)
	kappa, _ := financial.KappaRatio(monthlyReturns, hurdleMonthly, 3)
	gainLoss, _ := financial.GainLossRatio(monthlyReturns)

	p := PerformanceMetrics{
		NetIRR:                a.IRR,
		Sharpe:                sharpe,
		Sortino:               sortino,
		Calmar:                calmar,
		Information:           information,
		Treynor:               treynor,
		Omega:                 omega,
		Kappa:                 kappa,
		GainLoss:              gainLoss,
		HurdleClearRequiresMC: true,
	}

	if len(in.MonteCarloReturns) > 0 {
		var clears int
		for _, r := range in.MonteCarloReturns {
			if r >= in.Config.HurdleRate {
				clears++
			}
		}
		prob := float64(clears) / float64(len(in.MonteCarloReturns))
		p.HurdleClearProb = &prob
		p.HurdleClearRequiresMC = false
	}

	return p
}

// periodReturns approximates a per-period return series as net cashflow
// over committed fund size, a simplification documented here: true
// period returns would need a NAV series, which the cashflow aggregator
// does not track. A non-positive fundSize leaves the cashflows unscaled.
func periodReturns(periods []cashflow.FundPeriod, fundSize float64) []float64 {
	out := make([]float64, 0, len(periods))
	for _, p := range periods {
		if fundSize > 0 {
			out = append(out, p.NetCashflow/fundSize)
		} else {
			out = append(out, p.NetCashflow)
		}
	}
	return out
}
