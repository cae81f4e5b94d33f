package pricepath

import (
	"testing"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/rng"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBaseline(t *testing.T, model config.PriceModel) *Result {
	t.Helper()
	cfg := config.Default()
	cfg.FundTermYears = 5
	cfg.PricePath.Model = model
	provider := tls.NewMockProvider(42)
	stream := rng.New(42, "run-1")

	res, advisories, err := Run(cfg, provider, nil, nil, stream)
	require.NoError(t, err)
	assert.Empty(t, advisories)
	return res
}

func TestRunAnchorsAndPositivity(t *testing.T) {
	for _, model := range []config.PriceModel{config.ModelGBM, config.ModelMeanReversion, config.ModelRegimeSwitching, config.ModelSydneyCycle} {
		res := runBaseline(t, model)
		for _, series := range res.Zone {
			assert.Equal(t, 1.0, series[0])
			for _, v := range series {
				assert.Greater(t, v, 0.0)
			}
		}
		for _, series := range res.Property {
			assert.Equal(t, 1.0, series[0])
			for _, v := range series {
				assert.Greater(t, v, 0.0)
			}
		}
	}
}

func TestRunSeriesLength(t *testing.T) {
	res := runBaseline(t, config.ModelGBM)
	for _, series := range res.Zone {
		assert.Len(t, series, 5*12+1)
	}
}

func TestRunProjectsNonPSDCorrelation(t *testing.T) {
	cfg := config.Default()
	cfg.FundTermYears = 3
	cfg.PricePath.CorrelationMatrix = [][]float64{
		{1.0, 0.99, -0.99},
		{0.99, 1.0, 0.99},
		{-0.99, 0.99, 1.0},
	}
	provider := tls.NewMockProvider(1)
	stream := rng.New(1, "run-1")

	res, advisories, err := Run(cfg, provider, nil, nil, stream)
	require.NoError(t, err)
	assert.True(t, res.PSDProjected)
	require.NotEmpty(t, advisories)
	assert.Equal(t, "price_warning", string(advisories[0].Type))
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := config.Default()
	cfg.FundTermYears = 3
	provider := tls.NewMockProvider(9)

	a, _, err := Run(cfg, provider, nil, nil, rng.New(5, "run-1"))
	require.NoError(t, err)
	b, _, err := Run(cfg, provider, nil, nil, rng.New(5, "run-1"))
	require.NoError(t, err)

	assert.Equal(t, a.Zone, b.Zone)
}

func TestRunComputesRealizedCorrelationsFromSimulatedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.FundTermYears = 10
	cfg.PricePath.CorrelationMatrix = [][]float64{
		{1.0, 0.2, 0.1},
		{0.2, 1.0, 0.3},
		{0.1, 0.3, 1.0},
	}
	provider := tls.NewMockProvider(3)
	stream := rng.New(3, "run-1")

	res, _, err := Run(cfg, provider, nil, nil, stream)
	require.NoError(t, err)

	n := len(config.Zones)
	require.Len(t, res.Correlations, n)
	for i := 0; i < n; i++ {
		require.Len(t, res.Correlations[i], n)
		assert.InDelta(t, 1.0, res.Correlations[i][i], 1e-9)
		for j := 0; j < n; j++ {
			assert.Equal(t, res.Correlations[i][j], res.Correlations[j][i], "correlation matrix must be symmetric")
			assert.GreaterOrEqual(t, res.Correlations[i][j], -1.0-1e-9)
			assert.LessOrEqual(t, res.Correlations[i][j], 1.0+1e-9)
		}
	}

	// The realized correlations are derived from the simulated return
	// series, not copied from the configured assumption matrix.
	assert.NotEqual(t, cfg.PricePath.CorrelationMatrix, res.Correlations)
}

func TestPropertyValueAtClampsMonth(t *testing.T) {
	res := runBaseline(t, config.ModelGBM)
	var anyProperty string
	for id := range res.Property {
		anyProperty = id
		break
	}
	require.NotEmpty(t, anyProperty)

	v := res.PropertyValueAt(500_000, anyProperty, 10_000)
	assert.Greater(t, v, 0.0)

	v0 := res.PropertyValueAt(500_000, anyProperty, 0)
	assert.Equal(t, 500_000.0, v0)
}
