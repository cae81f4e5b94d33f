package orchestrator

import (
	"testing"

	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCompletesWithDefaultConfig(t *testing.T) {
	cfg := config.Default()
	cfg.FundSize = 20_000_000
	cfg.FundTermYears = 5

	summary := Run(cfg, Options{RunID: "run-1", Seed: 42, Provider: tls.NewMockProvider(42)})

	require.Equal(t, StateCompleted, summary.State)
	assert.Greater(t, summary.NumLoans, 0)
	assert.NotNil(t, summary.Waterfall)
	assert.NotNil(t, summary.Metrics)
	assert.NotEmpty(t, summary.ModuleTimings)
}

func TestRunFailsOnInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxLTV = 0.99

	summary := Run(cfg, Options{RunID: "run-2", Seed: 42})

	assert.Equal(t, StateFailed, summary.State)
	assert.NotEmpty(t, summary.Error)
}

func TestRunRespectsCancellation(t *testing.T) {
	cfg := config.Default()
	cfg.FundSize = 20_000_000
	cfg.FundTermYears = 5

	summary := Run(cfg, Options{
		RunID: "run-3", Seed: 42, Provider: tls.NewMockProvider(42),
		Cancelled: func() bool { return true },
	})

	assert.Equal(t, StateCancelled, summary.State)
}

func TestRunEmitsProgressEvents(t *testing.T) {
	cfg := config.Default()
	cfg.FundSize = 20_000_000
	cfg.FundTermYears = 5

	var modules []string
	Run(cfg, Options{
		RunID: "run-4", Seed: 42, Provider: tls.NewMockProvider(42),
		OnProgress: func(e ProgressEvent) { modules = append(modules, e.Module) },
	})

	assert.Contains(t, modules, "capital_allocator")
	assert.Contains(t, modules, "risk_performance")
}

func TestRunIsDeterministicForFixedSeed(t *testing.T) {
	cfg := config.Default()
	cfg.FundSize = 20_000_000
	cfg.FundTermYears = 5

	s1 := Run(cfg, Options{RunID: "run-5", Seed: 7, Provider: tls.NewMockProvider(7)})
	s2 := Run(cfg, Options{RunID: "run-5", Seed: 7, Provider: tls.NewMockProvider(7)})

	assert.Equal(t, s1.NumLoans, s2.NumLoans)
	assert.Equal(t, s1.Waterfall.TotalToLP, s2.Waterfall.TotalToLP)
}
