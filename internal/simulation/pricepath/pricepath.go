// Package pricepath implements the price-path engine, module 5 of the
// pipeline: stochastic per-zone/suburb/property index
// series under one of four models, sharing correlated shocks across zones
// via a positive-semidefinite correlation matrix. PSD projection is
// grounded on the gonum.org/v1/gonum/mat.EigenSym pattern used for
// matrix work across the corpus's quantitative examples (e.g.
// danzoppo-realoptions, penny-vault-pvbt).
package pricepath

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/rng"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	apperrors "github.com/equihomepartners/core-engine/pkg/errors"
)

// Series is one entity's monthly price index, index[0] == 1.0.
type Series []float64

// Result is the price-path engine's output: zone, suburb, and property
// index series plus per-zone realized statistics.
type Result struct {
	Zone     map[config.Zone]Series
	Suburb   map[string]Series
	Property map[string]Series

	ZoneStats map[config.Zone]ZoneStatistics

	// Correlations holds the realized pairwise correlations of the
	// simulated zone return series, indexed in config.Zones order; it is
	// computed from the actual simulated paths, not copied from the
	// configured correlation-matrix assumption the shocks were drawn from.
	Correlations [][]float64

	// PSDProjected is true when the configured correlation matrix was not
	// positive-semidefinite and had to be projected; a PriceWarning is
	// also returned in that case.
	PSDProjected bool
}

// ZoneStatistics summarizes one zone's realized path.
type ZoneStatistics struct {
	MeanMonthlyReturn float64
	Volatility        float64
	Sharpe            float64
	MaxDrawdown       float64
}

// monthsPerYear is the engine's fixed monthly time step divisor.
const monthsPerYear = 12

// Run executes the configured stochastic model for fund.FundTermYears years
// across every zone/suburb/property visible through provider. Every
// property the provider lists gets a path; propertyZone and suburbOf are
// not consulted, so generation is not restricted to loan-referenced
// properties.
func Run(cfg *config.Configuration, provider tls.Provider, propertyZone map[string]config.Zone, suburbOf map[string]string, stream *rng.Stream) (*Result, []*apperrors.AppError, error) {
	var advisories []*apperrors.AppError

	steps := cfg.FundTermYears * monthsPerYear
	if cfg.PricePath.TimeStep == config.GranularityYearly {
		steps = cfg.FundTermYears
	}
	T := steps + 1

	corr, projected, err := nearestPSD(cfg.PricePath.CorrelationMatrix)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.Internal, err, "correlation matrix could not be factorized").WithModule("price_path_engine")
	}
	if projected {
		advisories = append(advisories, apperrors.New(apperrors.PriceWarning, "correlation matrix was not positive-semidefinite; projected to nearest PSD").WithModule("price_path_engine"))
	}

	zoneShocks := correlatedShocks(corr, T-1, stream)

	res := &Result{
		Zone:         make(map[config.Zone]Series, len(config.Zones)),
		Suburb:       make(map[string]Series),
		Property:     make(map[string]Series),
		ZoneStats:    make(map[config.Zone]ZoneStatistics, len(config.Zones)),
		PSDProjected: projected,
	}

	annualStepsPerYear := monthsPerYear
	if cfg.PricePath.TimeStep == config.GranularityYearly {
		annualStepsPerYear = 1
	}

	zoneReturns := make([][]float64, len(config.Zones))
	for zi, zone := range config.Zones {
		mu := cfg.AppreciationRates[zone]
		sigma := cfg.PricePath.Volatility[zone]
		series := simulateZone(cfg.PricePath.Model, mu, sigma, T, annualStepsPerYear, zoneShocks[zi], cfg, stream)
		res.Zone[zone] = series
		res.ZoneStats[zone] = computeStats(series, annualStepsPerYear)
		zoneReturns[zi] = periodReturns(series)
	}
	res.Correlations = realizedCorrelations(zoneReturns)

	for _, zone := range config.Zones {
		for _, suburb := range provider.SuburbsByZone(zone) {
			suburbFactor := stream.Normal(0, cfg.PricePath.SuburbVariation)
			suburbSeries := scaleSeries(res.Zone[zone], math.Exp(suburbFactor))
			res.Suburb[suburb.SuburbID] = suburbSeries

			for _, property := range suburb.Properties {
				propFactor := stream.Normal(0, cfg.PricePath.PropertyVariation)
				res.Property[property.PropertyID] = scaleSeries(suburbSeries, math.Exp(propFactor))
			}
		}
	}

	return res, advisories, nil
}

// scaleSeries multiplies every index by factor while forcing index[0] = 1,
// matching the "index[0] = 1.0 exactly" anchoring invariant even after
// idiosyncratic scaling.
func scaleSeries(base Series, factor float64) Series {
	out := make(Series, len(base))
	for i, v := range base {
		if i == 0 {
			out[i] = 1.0
			continue
		}
		out[i] = v * factor
	}
	return out
}

func simulateZone(model config.PriceModel, annualDrift, annualVol float64, T, stepsPerYear int, shocks []float64, cfg *config.Configuration, stream *rng.Stream) Series {
	dt := 1.0 / float64(stepsPerYear)
	series := make(Series, T)
	series[0] = 1.0

	switch model {
	case config.ModelMeanReversion:
		logLevel := 0.0
		speed := cfg.PricePath.MeanReversionSpeed
		for t := 1; t < T; t++ {
			shock := shocks[t-1]
			logLevel += speed*(annualDrift*float64(t)*dt-logLevel)*dt + annualVol*math.Sqrt(dt)*shock
			series[t] = math.Exp(logLevel)
		}
	case config.ModelRegimeSwitching:
		bull := true
		logLevel := 0.0
		for t := 1; t < T; t++ {
			if stream.Bernoulli(cfg.PricePath.RegimeSwitchProb * dt) {
				bull = !bull
			}
			drift := annualDrift
			vol := annualVol
			if !bull {
				drift = annualDrift * 0.2
				vol = annualVol * 1.6
			}
			shock := shocks[t-1]
			logLevel += (drift-0.5*vol*vol)*dt + vol*math.Sqrt(dt)*shock
			series[t] = math.Exp(logLevel)
		}
	case config.ModelSydneyCycle:
		period := cfg.PricePath.CyclePeriodYears
		if period <= 0 {
			period = 7
		}
		logLevel := 0.0
		for t := 1; t < T; t++ {
			years := float64(t) * dt
			cyclePos := math.Mod(years, period) / period
			cycleComponent := 0.03 * math.Sin(2*math.Pi*cyclePos)
			shock := shocks[t-1]
			logLevel += (annualDrift+cycleComponent-0.5*annualVol*annualVol)*dt + annualVol*math.Sqrt(dt)*shock
			series[t] = math.Exp(logLevel)
		}
	default: // config.ModelGBM
		logLevel := 0.0
		for t := 1; t < T; t++ {
			shock := shocks[t-1]
			logLevel += (annualDrift-0.5*annualVol*annualVol)*dt + annualVol*math.Sqrt(dt)*shock
			series[t] = math.Exp(logLevel)
		}
	}

	return series
}

// correlatedShocks draws `steps` correlated standard-normal shock vectors,
// one per zone, via the Cholesky factor of corr.
func correlatedShocks(corr [][]float64, steps int, stream *rng.Stream) [][]float64 {
	n := len(corr)
	flat := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			flat[i*n+j] = corr[i][j]
		}
	}
	symCorr := mat.NewSymDense(n, flat)

	var chol mat.Cholesky
	ok := chol.Factorize(symCorr)
	var L mat.TriDense
	if ok {
		chol.LTo(&L)
	} else {
		// Diagonal loading fallback keeps shocks independent rather than
		// panicking if the projected matrix is still numerically singular.
		L = *mat.NewTriDense(n, mat.Lower, nil)
		for i := 0; i < n; i++ {
			L.SetTri(i, i, 1.0)
		}
	}

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, steps)
	}

	for t := 0; t < steps; t++ {
		independent := make([]float64, n)
		for i := 0; i < n; i++ {
			independent[i] = stream.Normal(0, 1)
		}
		for i := 0; i < n; i++ {
			var v float64
			for j := 0; j <= i; j++ {
				v += L.At(i, j) * independent[j]
			}
			out[i][t] = v
		}
	}
	return out
}

// nearestPSD returns corr unchanged if it is already positive-semidefinite
// (all eigenvalues >= -tolerance), otherwise floors negative eigenvalues to
// a small positive value and reconstructs, reporting projected=true.
func nearestPSD(corr [][]float64) ([][]float64, bool, error) {
	n := len(corr)
	if n == 0 {
		return corr, false, nil
	}
	flat := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			flat[i*n+j] = corr[i][j]
		}
	}
	sym := mat.NewSymDense(n, flat)

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, false, errEigenFailed
	}

	values := eig.Values(nil)
	const floor = 1e-8
	needsProjection := false
	for _, v := range values {
		if v < -1e-10 {
			needsProjection = true
		}
	}
	if !needsProjection {
		return corr, false, nil
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	floored := make([]float64, n)
	for i, v := range values {
		if v < floor {
			floored[i] = floor
		} else {
			floored[i] = v
		}
	}

	diag := mat.NewDiagDense(n, floored)

	var tmp, reconstructed mat.Dense
	tmp.Mul(&vectors, diag)
	reconstructed.Mul(&tmp, vectors.T())

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = reconstructed.At(i, j)
		}
	}
	// Rescale to a correlation matrix (unit diagonal).
	for i := 0; i < n; i++ {
		di := math.Sqrt(out[i][i])
		for j := 0; j < n; j++ {
			dj := math.Sqrt(out[j][j])
			if di > 0 && dj > 0 {
				out[i][j] = out[i][j] / (di * dj)
			}
		}
	}
	for i := 0; i < n; i++ {
		out[i][i] = 1.0
	}

	return out, true, nil
}

var errEigenFailed = eigenError{}

type eigenError struct{}

func (eigenError) Error() string { return "eigendecomposition of correlation matrix failed to converge" }

// periodReturns converts a price index series into its per-step simple
// returns, shared by computeStats and realizedCorrelations so both derive
// from the same return definition.
func periodReturns(series Series) []float64 {
	if len(series) < 2 {
		return nil
	}
	returns := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		returns[i-1] = series[i]/series[i-1] - 1
	}
	return returns
}

// realizedCorrelations computes the pairwise Pearson correlation of each
// zone's realized return series, in the same config.Zones order the
// shocks were drawn in. A zone with fewer than two return observations
// contributes an undefined (0) correlation rather than panicking.
func realizedCorrelations(returns [][]float64) [][]float64 {
	n := len(returns)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		out[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			c := 0.0
			if len(returns[i]) > 1 && len(returns[i]) == len(returns[j]) {
				c = stat.Correlation(returns[i], returns[j], nil)
			}
			out[i][j] = c
			out[j][i] = c
		}
	}
	return out
}

func computeStats(series Series, stepsPerYear int) ZoneStatistics {
	if len(series) < 2 {
		return ZoneStatistics{}
	}
	returns := periodReturns(series)

	mean := stat.Mean(returns, nil)
	vol := stat.StdDev(returns, nil) * math.Sqrt(float64(stepsPerYear))
	annualMean := mean * float64(stepsPerYear)

	var sharpe float64
	if vol > 0 {
		sharpe = annualMean / vol
	}

	maxSoFar := series[0]
	var maxDD float64
	for _, v := range series[1:] {
		if v > maxSoFar {
			maxSoFar = v
		} else if maxSoFar > 0 {
			dd := (maxSoFar - v) / maxSoFar
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return ZoneStatistics{
		MeanMonthlyReturn: mean,
		Volatility:        vol,
		Sharpe:            sharpe,
		MaxDrawdown:       maxDD,
	}
}

// PropertyValueAt returns initial * index[month] for property, clamping
// month into [0, len-1], matching calculate_property_value.
func (r *Result) PropertyValueAt(initial float64, propertyID string, month int) float64 {
	series, ok := r.Property[propertyID]
	if !ok || len(series) == 0 {
		return initial
	}
	if month < 0 {
		month = 0
	}
	if month >= len(series) {
		month = len(series) - 1
	}
	return initial * series[month]
}
