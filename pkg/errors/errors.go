// Package errors provides the engine's error-kind enumeration and a single
// rich error type used across the simulation pipeline in place of ad-hoc
// exceptions.
package errors

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ErrorType identifies the policy that applies to an engine error, per the
// fixed taxonomy: fatal kinds abort a run before or during execution,
// advisory kinds are appended to guardrail violations, and NumericInstability
// is always recovered locally by the module that encountered it.
type ErrorType string

const (
	// ConfigValidation: a configuration failed a range or constraint check.
	// Fatal; the run never enters RUNNING.
	ConfigValidation ErrorType = "config_validation"
	// AllocationInfeasible: the loan generator cannot place even one loan
	// in a zone whose capital is below min_loan_size. Fatal.
	AllocationInfeasible ErrorType = "allocation_infeasible"
	// PriceWarning: a non-PSD correlation matrix was projected, or a
	// low-history suburb fell back to zone defaults. Advisory.
	PriceWarning ErrorType = "price_warning"
	// GuardrailAdvisory: WAL/fund-term mismatch, concentration over soft
	// cap, stress-LTV above threshold, or allocation drift. Advisory.
	GuardrailAdvisory ErrorType = "guardrail_advisory"
	// NumericInstability: IRR non-convergence, unsolvable waterfall,
	// singular covariance. Always locally recovered by the caller.
	NumericInstability ErrorType = "numeric_instability"
	// Cancelled: cooperative cancellation was observed between modules.
	Cancelled ErrorType = "cancelled"
	// Internal: any other unexpected failure. Fatal.
	Internal ErrorType = "internal"
)

// Fatal reports whether an error of this type must abort the run.
func (t ErrorType) Fatal() bool {
	switch t {
	case ConfigValidation, AllocationInfeasible, Internal:
		return true
	default:
		return false
	}
}

// AppError is the engine's error type: every fatal or advisory condition
// raised by a module is wrapped in one of these before it reaches the
// orchestrator.
type AppError struct {
	Err       error                  `json:"-"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Type      ErrorType              `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Stack     string                 `json:"stack,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped error for errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is compares by type and code, for use with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext attaches a diagnostic key/value pair.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithModule records which pipeline module raised the error.
func (e *AppError) WithModule(module string) *AppError {
	e.Module = module
	return e
}

// WithCode sets a short machine-readable error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ToJSON serializes the error for inclusion in a run summary.
func (e *AppError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// New creates a new AppError of the given type.
func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:      t,
		Message:   message,
		Stack:     getStack(),
		Timestamp: time.Now(),
	}
}

// Wrap attaches a message and stack to an existing error, preserving type
// and context when the wrapped error is already an *AppError.
func Wrap(t ErrorType, err error, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Err:       appErr.Err,
			Message:   fmt.Sprintf("%s: %s", message, appErr.Message),
			Code:      appErr.Code,
			Type:      appErr.Type,
			Module:    appErr.Module,
			Stack:     appErr.Stack,
			Context:   appErr.Context,
			Timestamp: appErr.Timestamp,
		}
	}

	return &AppError{
		Err:       err,
		Type:      t,
		Message:   message,
		Stack:     getStack(),
		Timestamp: time.Now(),
	}
}

func getStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "errors/errors.go") {
			stack.WriteString(fmt.Sprintf("%s:%d %s\n", filepath.Base(frame.File), frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return stack.String()
}

// As extracts an *AppError from err, if any is present in its chain.
func As(err error) (*AppError, bool) {
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			return ae, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
