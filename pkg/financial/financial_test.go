package financial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNPV(t *testing.T) {
	v := NPV(0.1, []float64{-100, 30, 40, 50})
	assert.InDelta(t, -2.10368144252444, v, 1e-9)
}

func TestIRRKnownCashflows(t *testing.T) {
	r, ok := IRR([]float64{-100, 30, 40, 50}, 0.1)
	require.True(t, ok)
	assert.InDelta(t, 0.08896339469335002, r, 1e-6)
}

func TestIRRHandlesAllZero(t *testing.T) {
	_, ok := IRR([]float64{0, 0, 0}, 0.1)
	assert.False(t, ok)
}

func TestIRRHandlesEmpty(t *testing.T) {
	_, ok := IRR(nil, 0.1)
	assert.False(t, ok)
}

func TestXIRR(t *testing.T) {
	r, ok := XIRR([]float64{-100, 30, 40, 50}, []float64{0, 0.5, 1.0, 1.5}, 0.1)
	require.True(t, ok)
	assert.InDelta(t, 0.1858412749820647, r, 1e-4)
}

func TestEquityMultiple(t *testing.T) {
	m, ok := EquityMultiple([]float64{-100, 30, 40, 50})
	require.True(t, ok)
	assert.InDelta(t, 1.2, m, 1e-9)
}

func TestROI(t *testing.T) {
	r, ok := ROI([]float64{-100, 30, 40, 50})
	require.True(t, ok)
	assert.InDelta(t, 0.2, r, 1e-9)
}

func TestPaybackPeriod(t *testing.T) {
	p, ok := PaybackPeriod([]float64{-100, 30, 40, 50})
	require.True(t, ok)
	assert.InDelta(t, 2.6, p, 1e-9)
}

func TestPaybackPeriodNeverRecovered(t *testing.T) {
	_, ok := PaybackPeriod([]float64{-100, 10, 10})
	assert.False(t, ok)
}

func TestMaxDrawdown(t *testing.T) {
	dd := MaxDrawdown([]float64{100, 110, 105, 95, 100, 90, 95})
	assert.InDelta(t, 0.18181818181818182, dd, 1e-9)
}

func TestVaR(t *testing.T) {
	v := VaR([]float64{0.05, -0.02, 0.03, -0.01, 0.04}, 0.95)
	assert.Greater(t, v, 0.0)
}

func TestSharpeRatio(t *testing.T) {
	s, ok := SharpeRatio([]float64{0.05, -0.02, 0.03, -0.01, 0.04}, 0.01)
	require.True(t, ok)
	assert.False(t, math.IsNaN(s))
}

func TestAnalyticVaRMonotonicInConfidence(t *testing.T) {
	v95 := AnalyticVaR(0.95, 0.08, 0.15, 1)
	v99 := AnalyticVaR(0.99, 0.08, 0.15, 1)
	assert.Greater(t, v99, v95)
}

func TestCVaRAtLeastVaR(t *testing.T) {
	returns := []float64{-0.1, -0.05, -0.02, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07}
	v := VaR(returns, 0.95)
	c := CVaR(returns, 0.95)
	assert.GreaterOrEqual(t, c, v-1e-9)
}

func TestInformationRatioZeroWhenIdenticalToBenchmark(t *testing.T) {
	r := []float64{0.01, 0.02, 0.03}
	ir, ok := InformationRatio(r, r)
	require.False(t, ok)
	assert.Equal(t, 0.0, ir)
}

func TestInformationRatioPositiveWhenOutperforming(t *testing.T) {
	r := []float64{0.03, 0.04, 0.05}
	b := []float64{0.01, 0.01, 0.01}
	ir, ok := InformationRatio(r, b)
	require.True(t, ok)
	assert.Greater(t, ir, 0.0)
}

func TestTreynorRatio(t *testing.T) {
	tr, ok := TreynorRatio(0.12, 0.02, 1.2)
	require.True(t, ok)
	assert.InDelta(t, 0.0833333333, tr, 1e-6)
}

func TestTreynorRatioZeroBeta(t *testing.T) {
	_, ok := TreynorRatio(0.1, 0.02, 0)
	assert.False(t, ok)
}

func TestOmegaRatioAboveOneWhenGainsDominate(t *testing.T) {
	returns := []float64{0.05, 0.04, 0.03, -0.01}
	o, ok := OmegaRatio(returns, 0)
	require.True(t, ok)
	assert.Greater(t, o, 1.0)
}

func TestKappaRatioMatchesSortinoShapeAtOrderTwo(t *testing.T) {
	returns := []float64{0.05, -0.02, 0.03, -0.04, 0.01}
	k, ok := KappaRatio(returns, 0, 2)
	require.True(t, ok)
	assert.False(t, math.IsNaN(k))
}

func TestGainLossRatio(t *testing.T) {
	g, ok := GainLossRatio([]float64{0.1, 0.2, -0.05, -0.05})
	require.True(t, ok)
	assert.InDelta(t, 3.0, g, 1e-9)
}

func TestGainLossRatioNoLosses(t *testing.T) {
	_, ok := GainLossRatio([]float64{0.1, 0.2})
	assert.False(t, ok)
}
