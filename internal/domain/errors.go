package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for one analysis request. Normalization errors are local and
// recovered by dropping the offending field; NoNutritionData and
// RequestDeadlineExceeded are fatal; the grounding errors are recovered via
// the rule-only fallback.
var (
	// ErrUnrecognizedNutrient indicates a nutrient name that could not be
	// mapped to any canonical key.
	ErrUnrecognizedNutrient = errors.New("unrecognized nutrient")

	// ErrUnitConversion indicates a unit incompatible with the nutrient's
	// expected dimension (e.g. %DV where no reference daily value exists).
	ErrUnitConversion = errors.New("unit conversion error")

	// ErrNoNutritionData indicates that neither source yielded any usable
	// nutrient data. No verdict can be produced.
	ErrNoNutritionData = errors.New("no nutrition data")

	// ErrGroundingUnavailable indicates the grounded-reasoning collaborator
	// could not be reached within the retry budget.
	ErrGroundingUnavailable = errors.New("grounding unavailable")

	// ErrMalformedGroundingResponse indicates the grounding collaborator
	// responded, but without a parseable rationale and safety classification.
	ErrMalformedGroundingResponse = errors.New("malformed grounding response")

	// ErrRequestDeadlineExceeded indicates the overall request deadline
	// elapsed before a verdict could be assembled.
	ErrRequestDeadlineExceeded = errors.New("request deadline exceeded")
)

// NormalizationError reports why a single source field was dropped during
// canonicalization. It wraps either ErrUnrecognizedNutrient or
// ErrUnitConversion so callers can classify with errors.Is.
type NormalizationError struct {
	// Nutrient is the raw nutrient name from the source.
	Nutrient string

	// Unit is the raw unit from the source, when relevant.
	Unit string

	// Err is the underlying taxonomy error.
	Err error
}

// Error implements the error interface for NormalizationError.
func (e *NormalizationError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("normalize %q (%s): %v", e.Nutrient, e.Unit, e.Err)
	}
	return fmt.Sprintf("normalize %q: %v", e.Nutrient, e.Err)
}

// Unwrap returns the underlying taxonomy error.
func (e *NormalizationError) Unwrap() error { return e.Err }
