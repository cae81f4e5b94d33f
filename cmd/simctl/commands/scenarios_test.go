package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/equihomepartners/core-engine/internal/simulation/cashflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShockPeriodsScalesNetCashflow(t *testing.T) {
	periods := []cashflow.FundPeriod{
		{Period: 0, NetCashflow: -100},
		{Period: 1, NetCashflow: 50},
	}
	sc := cashflow.Scenario{Name: "stress", Shocks: map[string]float64{"appreciation": -0.2}}

	shocked := shockPeriods(periods, sc)

	require.Len(t, shocked, 2)
	assert.InDelta(t, -120, shocked[0].NetCashflow, 1e-9)
	assert.InDelta(t, 40, shocked[1].NetCashflow, 1e-9)
	assert.Equal(t, -100.0, periods[0].NetCashflow, "input periods must not be mutated")
}

func TestLoadScenariosDecodesYAMLBatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	body := "- name: base_case\n  shocks:\n    appreciation: 0\n- name: downturn\n  shocks:\n    appreciation: -0.3\n    distributions: -0.1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	scenarios, err := loadScenarios(path)

	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "downturn", scenarios[1].Name)
	assert.InDelta(t, -0.3, scenarios[1].Shocks["appreciation"], 1e-9)
}

func TestLoadConfigurationDecodesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "fund_size: 15000000\nfund_term: 6\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := loadConfiguration(path)

	require.NoError(t, err)
	assert.Equal(t, 15_000_000.0, cfg.FundSize)
	assert.Equal(t, 6, cfg.FundTermYears)
}
