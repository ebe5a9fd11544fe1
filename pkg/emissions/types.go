package emissions

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Custom errors.
var (
	ErrUnknownType       = errors.New("no emission factor for generation type")
	ErrDivisionUndefined = errors.New("total generation is zero")
	ErrInvalidPolicy     = errors.New("invalid unknown type policy")
	ErrInvalidFactor     = errors.New("invalid emission factor")
)

// Policy decides what happens with generation types that have no factor.
type Policy string

// Unknown type policies.
const (
	PolicySkip  Policy = "skip"
	PolicyAbort Policy = "abort"
)

// UnknownTypeError lists the generation types without emission factor.
type UnknownTypeError struct {
	Types []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownType, strings.Join(e.Types, ", "))
}

// Unwrap returns the sentinel error.
func (e *UnknownTypeError) Unwrap() error {
	return ErrUnknownType
}

// Config contains the aggregator configuration.
type Config struct {
	Logger  *slog.Logger
	Factors FactorTable
	Policy  Policy
}

// Result is the emission series of a span of hours. Generation and
// Emissions are indexed [row][type] with types in the order of Types.
type Result struct {
	Timestamps []time.Time
	Types      []string
	Generation [][]float64
	Emissions  [][]float64
	// AEF is the generation weighted average emission factor in kg/MWh.
	AEF []float64
	// Skipped lists the types without factor that were left out.
	Skipped []string
	// Undefined is the number of rows without any generation.
	Undefined int
}
