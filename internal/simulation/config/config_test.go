package config

import (
	"testing"

	apperrors "github.com/equihomepartners/core-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Validated())
}

func TestValidateRejectsMaxLTVAboveGuardrail(t *testing.T) {
	cfg := Default()
	cfg.MaxLTV = 0.9
	cfg.AvgLoanLTV = 0.8

	err := cfg.Validate()
	require.Error(t, err)
	ae, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ConfigValidation, ae.Type)
	assert.True(t, ae.Type.Fatal())
}

func TestValidateRejectsZoneAllocationAboveCap(t *testing.T) {
	cfg := Default()
	cfg.ZoneAllocations = ZoneAllocations{ZoneGreen: 0.7, ZoneOrange: 0.2, ZoneRed: 0.1}

	err := cfg.Validate()
	require.Error(t, err)
	ae, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ConfigValidation, ae.Type)
}

func TestValidateRejectsZoneAllocationsNotSummingToOne(t *testing.T) {
	cfg := Default()
	cfg.ZoneAllocations = ZoneAllocations{ZoneGreen: 0.5, ZoneOrange: 0.3, ZoneRed: 0.1}

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsMissingZoneRate(t *testing.T) {
	cfg := Default()
	cfg.DefaultRates = ZoneRates{ZoneGreen: 0.01, ZoneOrange: 0.03}

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsInvertedLoanSizeBounds(t *testing.T) {
	cfg := Default()
	cfg.MinLoanSize = 500_000
	cfg.MaxLoanSize = 100_000

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsMonteCarloOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.MonteCarlo.Enabled = true
	cfg.MonteCarlo.NumSimulations = 0

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsBoundaryMaxLTV(t *testing.T) {
	cfg := Default()
	cfg.MaxLTV = 0.85
	cfg.AvgLoanLTV = 0.8

	assert.NoError(t, cfg.Validate())
}

func TestGetFallsBackWhenExtraNil(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "fallback", cfg.Get("missing_key", "fallback"))
}

func TestGetReadsExtra(t *testing.T) {
	cfg := Default()
	cfg.Extra = map[string]any{"custom_flag": true}
	assert.Equal(t, true, cfg.Get("custom_flag", false))
}
