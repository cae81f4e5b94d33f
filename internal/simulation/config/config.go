// Package config models the simulation Configuration entity and its
// validation, grounded on the source engine's src/config/config_loader.py
// SimulationConfig/validate_guardrails.
package config

import (
	"math"

	apperrors "github.com/equihomepartners/core-engine/pkg/errors"
)

// ManagementFeeBasis selects what a management fee percentage applies to.
type ManagementFeeBasis string

const (
	BasisCommittedCapital ManagementFeeBasis = "committed_capital"
	BasisInvestedCapital  ManagementFeeBasis = "invested_capital"
	BasisNetAssetValue    ManagementFeeBasis = "net_asset_value"
)

// WaterfallStructure selects European (whole-fund) or American
// (deal-by-deal) distribution cascades.
type WaterfallStructure string

const (
	WaterfallEuropean WaterfallStructure = "european"
	WaterfallAmerican WaterfallStructure = "american"
)

// Zone is a TLS risk tier.
type Zone string

const (
	ZoneGreen  Zone = "green"
	ZoneOrange Zone = "orange"
	ZoneRed    Zone = "red"
)

// Zones lists the three recognized zones in canonical order.
var Zones = []Zone{ZoneGreen, ZoneOrange, ZoneRed}

// ZoneAllocations is a per-zone fraction of fund_size, summing to 1.
type ZoneAllocations map[Zone]float64

// ZoneRates is a per-zone annual rate (appreciation, default, recovery,
// or volatility depending on context).
type ZoneRates map[Zone]float64

// TimeGranularity is the cashflow bucketing period.
type TimeGranularity string

const (
	GranularityMonthly   TimeGranularity = "monthly"
	GranularityQuarterly TimeGranularity = "quarterly"
	GranularityYearly    TimeGranularity = "yearly"
)

// PriceModel selects the stochastic model the price-path engine uses.
type PriceModel string

const (
	ModelGBM             PriceModel = "gbm"
	ModelMeanReversion    PriceModel = "mean_reversion"
	ModelRegimeSwitching  PriceModel = "regime_switching"
	ModelSydneyCycle      PriceModel = "sydney_cycle"
)

// AppreciationShareMethod selects how the fund's share of property
// appreciation on sale is computed.
type AppreciationShareMethod string

const (
	ShareProRataLTV AppreciationShareMethod = "pro_rata_ltv"
	ShareTiered     AppreciationShareMethod = "tiered"
	ShareFixed      AppreciationShareMethod = "fixed"
)

// WaterfallTierConfig is one tier of a multi-tier waterfall.
type WaterfallTierConfig struct {
	HurdleRate   float64 `json:"hurdle_rate"`
	CarriedSplit float64 `json:"carried_split"`
}

// MonteCarloConfig controls whether the orchestrator runs one deterministic
// pass or many stochastic draws.
type MonteCarloConfig struct {
	Enabled        bool `json:"enabled"`
	NumSimulations int  `json:"num_simulations"`
}

// PricePathConfig configures module 5.
type PricePathConfig struct {
	Model              PriceModel         `json:"model"`
	TimeStep           TimeGranularity    `json:"time_step"`
	Volatility         ZoneRates          `json:"volatility"`
	CorrelationMatrix  [][]float64        `json:"correlation_matrix"`
	SuburbVariation    float64            `json:"suburb_variation"`
	PropertyVariation  float64            `json:"property_variation"`
	MeanReversionSpeed float64            `json:"mean_reversion_speed"`
	RegimeSwitchProb   float64            `json:"regime_switch_probability"`
	CyclePeriodYears   float64            `json:"cycle_period_years"`
}

// ExitSimulatorConfig configures module 6.
type ExitSimulatorConfig struct {
	BaseExitRate            float64                 `json:"base_exit_rate"`
	MinHoldPeriodMonths     int                      `json:"min_hold_period_months"`
	MaxHoldPeriodYears      float64                  `json:"max_hold_period_years"`
	SaleWeight              float64                  `json:"sale_weight"`
	RefinanceWeight         float64                  `json:"refinance_weight"`
	DefaultWeight           float64                  `json:"default_weight"`
	AppreciationShareMethod AppreciationShareMethod  `json:"appreciation_share_method"`
	FixedAppreciationShare  float64                  `json:"fixed_appreciation_share"`
	ForeclosureCostPct      float64                  `json:"foreclosure_cost_pct"`
	RecessionMultiplier     float64                  `json:"recession_multiplier"`
	EnhancedAnalytics       bool                     `json:"enhanced_analytics"`
}

// ReinvestmentEngineConfig configures module 7.
type ReinvestmentEngineConfig struct {
	MinCashThreshold         float64            `json:"min_cash_threshold"`
	ZonePreferenceMultipliers ZoneRates         `json:"zone_preference_multipliers"`
}

// CashflowAggregatorConfig configures module 8.
type CashflowAggregatorConfig struct {
	Granularity              TimeGranularity `json:"granularity"`
	EnableParallelProcessing bool            `json:"enable_parallel_processing"`
	NumWorkers               int             `json:"num_workers"`
	ParallelThreshold        int             `json:"parallel_threshold"`
}

// WaterfallEngineConfig configures module 9.
type WaterfallEngineConfig struct {
	MultiTierEnabled  bool                  `json:"multi_tier_enabled"`
	Tiers             []WaterfallTierConfig `json:"tiers"`
	EnableClawback    bool                  `json:"enable_clawback"`
	ClawbackThreshold float64               `json:"clawback_threshold"`
}

// RiskMetricsConfig configures module 10.
type RiskMetricsConfig struct {
	StressShockPropertyValue float64 `json:"stress_shock_property_value"`
	StressShockInterestRate  float64 `json:"stress_shock_interest_rate"`
	StressShockDefaultRate   float64 `json:"stress_shock_default_rate"`
	TopNConcentration        int     `json:"top_n_concentration"`
	RiskFreeRate             float64 `json:"risk_free_rate"`
}

// TrancheManagerConfig is reserved for multi-tranche structures; present
// for forward compatibility with the source's tranche_manager module but
// not exercised by the core pipeline (no tranche module is named).
type TrancheManagerConfig struct {
	Enabled bool `json:"enabled"`
}

// Configuration is the validated, immutable simulation configuration.
// After Validate() returns no error, no exported setter mutates it. No
// pipeline module accepts an Override, so every module reads this struct
// as validated (see SPEC_FULL.md Open Question 1).
type Configuration struct {
	FundSize                 float64             `json:"fund_size"`
	FundTermYears            int                 `json:"fund_term"`
	VintageYear              int                 `json:"vintage_year"`
	GPCommitmentPercentage   float64             `json:"gp_commitment_percentage"`
	ReinvestmentPeriodYears  int                 `json:"reinvestment_period"`

	HurdleRate              float64            `json:"hurdle_rate"`
	CarriedInterestRate     float64            `json:"carried_interest_rate"`
	CatchUpRate             float64            `json:"catch_up_rate"`
	ManagementFeeRate       float64            `json:"management_fee_rate"`
	ManagementFeeBasis      ManagementFeeBasis `json:"management_fee_basis"`
	WaterfallStructure      WaterfallStructure `json:"waterfall_structure"`

	AvgLoanSize       float64 `json:"avg_loan_size"`
	LoanSizeStdDev    float64 `json:"loan_size_std_dev"`
	MinLoanSize       float64 `json:"min_loan_size"`
	MaxLoanSize       float64 `json:"max_loan_size"`
	AvgLoanTermYears  float64 `json:"avg_loan_term"`
	AvgLoanInterestRate float64 `json:"avg_loan_interest_rate"`
	AvgLoanLTV        float64 `json:"avg_loan_ltv"`
	LTVStdDev         float64 `json:"ltv_std_dev"`
	MinLTV            float64 `json:"min_ltv"`
	MaxLTV            float64 `json:"max_ltv"`

	ZoneAllocations  ZoneAllocations `json:"zone_allocations"`
	AppreciationRates ZoneRates      `json:"appreciation_rates"`
	DefaultRates      ZoneRates      `json:"default_rates"`
	RecoveryRates     ZoneRates      `json:"recovery_rates"`

	MonteCarlo MonteCarloConfig `json:"monte_carlo"`

	PricePath            PricePathConfig          `json:"price_path"`
	ExitSimulator        ExitSimulatorConfig      `json:"exit_simulator"`
	ReinvestmentEngine   ReinvestmentEngineConfig `json:"reinvestment_engine"`
	CashflowAggregator   CashflowAggregatorConfig `json:"cashflow_aggregator"`
	WaterfallEngine      WaterfallEngineConfig    `json:"waterfall_engine"`
	RiskMetrics          RiskMetricsConfig        `json:"risk_metrics"`
	TrancheManager       TrancheManagerConfig     `json:"tranche_manager"`

	// Extra preserves unrecognized keys for forward compatibility, the Go
	// analogue of pydantic's `extra = "allow"` in config_loader.py.
	Extra map[string]any `json:"-"`

	validated bool
}

// Override carries an explicit, typed per-module parameter override. No
// pipeline module takes Override values as input; nothing in the engine
// applies one.
type Override struct {
	Key   string
	Value any
}

// Default returns a Configuration with every optional field at its
// spec-default value and the three required fields (fund_size, fund_term,
// vintage_year) at sensible defaults; callers overwrite what they need
// before calling Validate.
func Default() *Configuration {
	return &Configuration{
		FundSize:                100_000_000,
		FundTermYears:           10,
		VintageYear:             2023,
		GPCommitmentPercentage:  0.0,
		ReinvestmentPeriodYears: 5,

		HurdleRate:          0.08,
		CarriedInterestRate: 0.20,
		CatchUpRate:         0.0,
		ManagementFeeRate:   0.02,
		ManagementFeeBasis:  BasisCommittedCapital,
		WaterfallStructure:  WaterfallEuropean,

		AvgLoanSize:         250_000,
		LoanSizeStdDev:      50_000,
		MinLoanSize:         100_000,
		MaxLoanSize:         500_000,
		AvgLoanTermYears:    5,
		AvgLoanInterestRate: 0.05,
		AvgLoanLTV:          0.75,
		LTVStdDev:           0.05,
		MinLTV:              0.5,
		MaxLTV:              0.85,

		ZoneAllocations: ZoneAllocations{ZoneGreen: 0.6, ZoneOrange: 0.3, ZoneRed: 0.1},
		AppreciationRates: ZoneRates{ZoneGreen: 0.05, ZoneOrange: 0.03, ZoneRed: 0.01},
		DefaultRates:      ZoneRates{ZoneGreen: 0.01, ZoneOrange: 0.03, ZoneRed: 0.05},
		RecoveryRates:     ZoneRates{ZoneGreen: 0.9, ZoneOrange: 0.8, ZoneRed: 0.7},

		MonteCarlo: MonteCarloConfig{Enabled: false, NumSimulations: 1000},

		PricePath: PricePathConfig{
			Model:             ModelGBM,
			TimeStep:          GranularityMonthly,
			Volatility:        ZoneRates{ZoneGreen: 0.08, ZoneOrange: 0.12, ZoneRed: 0.18},
			CorrelationMatrix: defaultCorrelation(),
			SuburbVariation:   0.03,
			PropertyVariation: 0.02,
			MeanReversionSpeed: 0.3,
			RegimeSwitchProb:  0.05,
			CyclePeriodYears:  7,
		},
		ExitSimulator: ExitSimulatorConfig{
			BaseExitRate:            0.15,
			MinHoldPeriodMonths:     12,
			MaxHoldPeriodYears:      15,
			SaleWeight:              0.6,
			RefinanceWeight:         0.25,
			DefaultWeight:           0.15,
			AppreciationShareMethod: ShareProRataLTV,
			FixedAppreciationShare:  0.2,
			ForeclosureCostPct:      0.1,
			RecessionMultiplier:     1.0,
			EnhancedAnalytics:       false,
		},
		ReinvestmentEngine: ReinvestmentEngineConfig{
			MinCashThreshold:          250_000,
			ZonePreferenceMultipliers: ZoneRates{ZoneGreen: 1.0, ZoneOrange: 1.0, ZoneRed: 1.0},
		},
		CashflowAggregator: CashflowAggregatorConfig{
			Granularity:              GranularityYearly,
			EnableParallelProcessing: false,
			NumWorkers:               4,
			ParallelThreshold:        10,
		},
		WaterfallEngine: WaterfallEngineConfig{
			MultiTierEnabled:  false,
			EnableClawback:    true,
			ClawbackThreshold: 0.0,
		},
		RiskMetrics: RiskMetricsConfig{
			StressShockPropertyValue: -0.20,
			StressShockInterestRate:  0.02,
			StressShockDefaultRate:   0.05,
			TopNConcentration:        5,
			RiskFreeRate:             0.02,
		},
	}
}

func defaultCorrelation() [][]float64 {
	return [][]float64{
		{1.0, 0.6, 0.4},
		{0.6, 1.0, 0.5},
		{0.4, 0.5, 1.0},
	}
}

// Validate checks every field's range/constraint and the policy
// guardrails (max_ltv <= 0.85, per-zone allocation <= 0.6, zone allocations
// sum to 1). It returns a *errors.AppError{Type: ConfigValidation} on the
// first violation found and never partially applies a configuration.
func (c *Configuration) Validate() error {
	fail := func(msg string) error {
		return apperrors.New(apperrors.ConfigValidation, msg).WithModule("config_validator")
	}

	if c.FundSize < 1_000_000 {
		return fail("fund_size must be >= 1,000,000")
	}
	if c.FundTermYears < 1 || c.FundTermYears > 30 {
		return fail("fund_term must be in [1, 30]")
	}
	if c.GPCommitmentPercentage < 0 || c.GPCommitmentPercentage > 1 {
		return fail("gp_commitment_percentage must be in [0, 1]")
	}
	if c.ReinvestmentPeriodYears < 0 || c.ReinvestmentPeriodYears > 30 {
		return fail("reinvestment_period must be in [0, 30]")
	}

	if c.HurdleRate < 0 || c.HurdleRate > 1 {
		return fail("hurdle_rate must be in [0, 1]")
	}
	if c.CarriedInterestRate < 0 || c.CarriedInterestRate > 1 {
		return fail("carried_interest_rate must be in [0, 1]")
	}
	if c.CatchUpRate < 0 || c.CatchUpRate > 1 {
		return fail("catch_up_rate must be in [0, 1]")
	}
	if c.ManagementFeeRate < 0 || c.ManagementFeeRate > 0.05 {
		return fail("management_fee_rate must be in [0, 0.05]")
	}
	switch c.ManagementFeeBasis {
	case BasisCommittedCapital, BasisInvestedCapital, BasisNetAssetValue:
	default:
		return fail("management_fee_basis is not recognized")
	}
	switch c.WaterfallStructure {
	case WaterfallEuropean, WaterfallAmerican:
	default:
		return fail("waterfall_structure is not recognized")
	}

	if c.MinLoanSize > c.MaxLoanSize {
		return fail("min_loan_size must be <= max_loan_size")
	}
	if c.AvgLoanSize < c.MinLoanSize || c.AvgLoanSize > c.MaxLoanSize {
		return fail("avg_loan_size must be within [min_loan_size, max_loan_size]")
	}
	if c.LoanSizeStdDev < 0 {
		return fail("loan_size_std_dev must be >= 0")
	}
	if c.AvgLoanTermYears <= 0 {
		return fail("avg_loan_term must be > 0")
	}
	if c.AvgLoanInterestRate < 0 || c.AvgLoanInterestRate > 1 {
		return fail("avg_loan_interest_rate must be in [0, 1]")
	}

	if c.MinLTV > c.MaxLTV {
		return fail("min_ltv must be <= max_ltv")
	}
	// Policy guardrail: max_ltv <= 0.85.
	if c.MaxLTV > 0.85 {
		return fail("max_ltv cannot exceed 0.85")
	}
	if c.AvgLoanLTV < c.MinLTV || c.AvgLoanLTV > c.MaxLTV {
		return fail("avg_loan_ltv must be within [min_ltv, max_ltv]")
	}
	if c.LTVStdDev < 0 || c.LTVStdDev > 0.5 {
		return fail("ltv_std_dev must be in [0, 0.5]")
	}

	if err := c.validateZoneAllocations(fail); err != nil {
		return err
	}
	if err := validateZoneRates(c.AppreciationRates, "appreciation_rates", fail); err != nil {
		return err
	}
	if err := validateZoneRates(c.DefaultRates, "default_rates", fail); err != nil {
		return err
	}
	if err := validateZoneRates(c.RecoveryRates, "recovery_rates", fail); err != nil {
		return err
	}

	if c.MonteCarlo.Enabled {
		if c.MonteCarlo.NumSimulations < 1 || c.MonteCarlo.NumSimulations > 10000 {
			return fail("num_simulations must be in [1, 10000]")
		}
	}

	c.validated = true
	return nil
}

func (c *Configuration) validateZoneAllocations(fail func(string) error) error {
	var sum float64
	for _, z := range Zones {
		w, ok := c.ZoneAllocations[z]
		if !ok {
			return fail("zone_allocations missing zone " + string(z))
		}
		if w > 0.6 {
			return fail("zone_allocations." + string(z) + " cannot exceed 0.6")
		}
		if w < 0 {
			return fail("zone_allocations." + string(z) + " cannot be negative")
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fail("zone_allocations must sum to 1")
	}
	return nil
}

func validateZoneRates(rates ZoneRates, name string, fail func(string) error) error {
	for _, z := range Zones {
		v, ok := rates[z]
		if !ok {
			return fail(name + " missing zone " + string(z))
		}
		if v < 0 || v > 1 {
			return fail(name + "." + string(z) + " must be in [0, 1]")
		}
	}
	return nil
}

// Validated reports whether Validate succeeded at least once.
func (c *Configuration) Validated() bool {
	return c.validated
}

// Get looks up an unrecognized key from the catch-all Extra map, the
// typed replacement for the source's `getattr(cfg, x, default)` call
// sites (SPEC_FULL.md §2, "Configuration").
func (c *Configuration) Get(key string, fallback any) any {
	if c.Extra == nil {
		return fallback
	}
	if v, ok := c.Extra[key]; ok {
		return v
	}
	return fallback
}
