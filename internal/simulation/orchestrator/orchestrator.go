// Package orchestrator drives every pipeline module in order, grounded on
// the source engine's src/engine/simulation_context.py (module timing,
// guardrail violation accumulation).
package orchestrator

import (
	"sort"
	"time"

	"github.com/equihomepartners/core-engine/internal/simulation/allocator"
	"github.com/equihomepartners/core-engine/internal/simulation/cashflow"
	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/exit"
	"github.com/equihomepartners/core-engine/internal/simulation/loans"
	"github.com/equihomepartners/core-engine/internal/simulation/pricepath"
	"github.com/equihomepartners/core-engine/internal/simulation/reinvestment"
	"github.com/equihomepartners/core-engine/internal/simulation/risk"
	"github.com/equihomepartners/core-engine/internal/simulation/rng"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	"github.com/equihomepartners/core-engine/internal/simulation/waterfall"
	apperrors "github.com/equihomepartners/core-engine/pkg/errors"
	"github.com/equihomepartners/core-engine/pkg/logger"
)

// State is the run's lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// ProgressEvent is an optional, best-effort advisory progress notification
// emitted as each module starts and finishes.
type ProgressEvent struct {
	SimulationID string    `json:"simulation_id"`
	Module       string    `json:"module"`
	Progress     int       `json:"progress"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// ModuleTiming records one module's wall-clock execution time.
type ModuleTiming struct {
	Module          string  `json:"module"`
	ExecutionSeconds float64 `json:"execution_seconds"`
}

// RunSummary is the orchestrator's JSON-serializable output.
type RunSummary struct {
	RunID             string                 `json:"run_id"`
	State             State                  `json:"state"`
	ConfigSummary     map[string]any         `json:"config_summary"`
	ExecutionTime     float64                `json:"execution_time"`
	ModuleTimings     []ModuleTiming         `json:"module_timings"`
	GuardrailViolations []*apperrors.AppError `json:"guardrail_violations,omitempty"`
	NumLoans          int                    `json:"num_loans"`
	ZoneAllocation    allocator.CapitalByZone `json:"zone_allocation"`
	CapitalAllocation float64                `json:"capital_allocation"`
	LoanPortfolio     []loans.Loan           `json:"loan_portfolio"`
	Cashflows         []cashflow.FundPeriod  `json:"cashflows"`
	Waterfall         *waterfall.Result      `json:"waterfall"`
	Metrics           *risk.Result           `json:"metrics"`
	Error             string                 `json:"error,omitempty"`
}

// Options configures one Run invocation.
type Options struct {
	RunID             string
	Seed              int64
	Provider          tls.Provider
	Logger            *logger.Logger
	Cancelled         func() bool
	OnProgress        func(ProgressEvent)
	MonteCarloReturns []float64
}

// Run drives every module of §2 in order against cfg, returning a
// RunSummary. It never panics on a module-local error: fatal AppErrors
// abort the run (State=Failed); advisory AppErrors accumulate into
// GuardrailViolations and the run continues.
func Run(cfg *config.Configuration, opts Options) *RunSummary {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault()
	}
	provider := opts.Provider
	if provider == nil {
		provider = tls.NewMockProvider(opts.Seed)
	}

	summary := &RunSummary{
		RunID: opts.RunID,
		State: StatePending,
	}

	timings := make([]ModuleTiming, 0, 10)
	track := func(module string, fn func() error) bool {
		if opts.Cancelled != nil && opts.Cancelled() {
			summary.State = StateCancelled
			return false
		}
		emit(opts, summary.RunID, module, 0, "starting")
		moduleStart := time.Now()
		err := fn()
		timings = append(timings, ModuleTiming{Module: module, ExecutionSeconds: time.Since(moduleStart).Seconds()})
		emit(opts, summary.RunID, module, 100, "completed")
		if err != nil {
			if ae, ok := apperrors.As(err); ok {
				switch {
				case ae.Type == apperrors.Cancelled:
					summary.State = StateCancelled
					return false
				case ae.Type.Fatal():
					summary.State = StateFailed
					summary.Error = ae.Error()
					log.Error("module failed", logger.String("module", module), logger.Error(err))
					return false
				default:
					summary.GuardrailViolations = append(summary.GuardrailViolations, ae)
					return true
				}
			}
			summary.State = StateFailed
			summary.Error = err.Error()
			return false
		}
		return true
	}

	summary.State = StateRunning

	if err := cfg.Validate(); err != nil {
		summary.State = StateFailed
		summary.Error = err.Error()
		return finalize(summary, timings, start)
	}

	stream := rng.New(opts.Seed, opts.RunID)

	var capitalByZone allocator.CapitalByZone
	if !track("capital_allocator", func() error {
		capitalByZone = allocator.Allocate(cfg)
		summary.ZoneAllocation = capitalByZone
		for _, v := range capitalByZone {
			summary.CapitalAllocation += v
		}
		return nil
	}) {
		return finalize(summary, timings, start)
	}

	var portfolio []loans.Loan
	if !track("loan_generator", func() error {
		var err error
		portfolio, err = loans.Generate(cfg, capitalByZone, provider, stream.Child(1), cfg.VintageYear, 0)
		return err
	}) {
		return finalize(summary, timings, start)
	}

	var paths *pricepath.Result
	if !track("price_path_engine", func() error {
		var advisories []*apperrors.AppError
		var err error
		paths, advisories, err = pricepath.Run(cfg, provider, nil, nil, stream.Child(2))
		summary.GuardrailViolations = append(summary.GuardrailViolations, advisories...)
		return err
	}) {
		return finalize(summary, timings, start)
	}

	var exits []exit.Record
	if !track("exit_simulator", func() error {
		var cancelled bool
		exits, cancelled = exit.Simulate(cfg, portfolio, paths, cfg.FundTermYears*12, stream.Child(3), opts.Cancelled)
		if cancelled {
			return apperrors.New(apperrors.Cancelled, "exit simulation cancelled").WithModule("exit_simulator")
		}
		return nil
	}) {
		return finalize(summary, timings, start)
	}

	if !track("reinvestment_engine", func() error {
		reinvResult := reinvestment.Run(cfg, portfolio, exits, provider, stream.Child(4))
		portfolio = append(portfolio, reinvResult.NewLoans...)
		return nil
	}) {
		return finalize(summary, timings, start)
	}

	var cfResult *cashflow.Result
	if !track("cashflow_aggregator", func() error {
		var advisories []*apperrors.AppError
		var cancelled bool
		cfResult, advisories, cancelled = cashflow.Aggregate(cfg, portfolio, exits, opts.Cancelled)
		summary.GuardrailViolations = append(summary.GuardrailViolations, advisories...)
		if cancelled {
			return apperrors.New(apperrors.Cancelled, "cashflow aggregation cancelled").WithModule("cashflow_aggregator")
		}
		return nil
	}) {
		return finalize(summary, timings, start)
	}

	var waterfallResult *waterfall.Result
	if !track("waterfall_engine", func() error {
		var advisories []*apperrors.AppError
		waterfallResult, advisories = waterfall.Run(cfg, cfResult.FundLevel, cfResult.LoanLevel, portfolio)
		summary.GuardrailViolations = append(summary.GuardrailViolations, advisories...)
		return nil
	}) {
		return finalize(summary, timings, start)
	}

	var riskResult risk.Result
	if !track("risk_performance", func() error {
		riskResult = risk.Compute(risk.Inputs{
			Config: cfg, Portfolio: portfolio, Exits: exits, Paths: paths,
			Cashflows: cfResult, Provider: provider, MonteCarloReturns: opts.MonteCarloReturns,
		})
		return nil
	}) {
		return finalize(summary, timings, start)
	}

	summary.State = StateCompleted
	summary.NumLoans = len(portfolio)
	summary.LoanPortfolio = portfolio
	summary.Cashflows = cfResult.FundLevel
	summary.Waterfall = waterfallResult
	summary.Metrics = &riskResult
	summary.ConfigSummary = map[string]any{
		"fund_size":    cfg.FundSize,
		"fund_term":    cfg.FundTermYears,
		"vintage_year": cfg.VintageYear,
	}

	return finalize(summary, timings, start)
}

func finalize(summary *RunSummary, timings []ModuleTiming, start time.Time) *RunSummary {
	summary.ModuleTimings = timings
	summary.ExecutionTime = time.Since(start).Seconds()
	sort.Slice(summary.GuardrailViolations, func(i, j int) bool {
		return summary.GuardrailViolations[i].Module < summary.GuardrailViolations[j].Module
	})
	return summary
}

func emit(opts Options, runID, module string, progress int, message string) {
	if opts.OnProgress == nil {
		return
	}
	opts.OnProgress(ProgressEvent{
		SimulationID: runID, Module: module, Progress: progress, Message: message, Timestamp: time.Now(),
	})
}

