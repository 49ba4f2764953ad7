package assay

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the extraction and fitting pipeline.
var (
	ErrUnrecognizedLayout = errors.New("unrecognized layout")
	ErrMissingField       = errors.New("missing or malformed field")
	ErrNoValidData        = errors.New("no valid data")
	ErrCurveFitFailed     = errors.New("curve fit failed")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrInvalidFit         = errors.New("invalid fit")
)

// FieldError reports a probe cell that is blank or cannot be parsed.
type FieldError struct {
	Row    int
	Col    int
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s at cell (%d,%d): %s", e.Field, e.Row, e.Col, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrMissingField }

// FitError wraps a solver failure with the pipeline stage that produced it.
type FitError struct {
	Stage string
	Err   error
}

func (e *FitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s fit failed", e.Stage)
	}
	return fmt.Sprintf("%s fit failed: %v", e.Stage, e.Err)
}

func (e *FitError) Unwrap() []error { return []error{ErrCurveFitFailed, e.Err} }

// Kind maps an error onto a stable machine-readable name, or "" when the
// error is not one of the pipeline kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnrecognizedLayout):
		return "unrecognized_layout"
	case errors.Is(err, ErrMissingField):
		return "missing_or_malformed_field"
	case errors.Is(err, ErrNoValidData):
		return "no_valid_data"
	case errors.Is(err, ErrCurveFitFailed):
		return "curve_fit_failed"
	case errors.Is(err, ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, ErrInvalidFit):
		return "invalid_fit"
	}
	return ""
}
