package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Severity classifies how serious a single flag is. Higher values are more
// severe; the ordering is relied on for flag sorting and safety derivation.
type Severity int

// Flag severities, least to most severe.
const (
	SeverityInfo Severity = iota + 1
	SeverityCaution
	SeverityDanger
)

// String returns the lowercase severity label used on the wire.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityCaution:
		return "caution"
	case SeverityDanger:
		return "danger"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the severity as its string label.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes a severity from its string label.
func (s *Severity) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "info":
		*s = SeverityInfo
	case "caution":
		*s = SeverityCaution
	case "danger":
		*s = SeverityDanger
	default:
		return fmt.Errorf("unknown severity %s", data)
	}
	return nil
}

// SafetyLevel is the coarse verdict classification surfaced to the user.
type SafetyLevel string

// Safety levels, least to most strict.
const (
	SafetySafe    SafetyLevel = "safe"
	SafetyCaution SafetyLevel = "caution"
	SafetyAvoid   SafetyLevel = "avoid"
)

// rank orders safety levels for strictness comparison. Unknown levels rank
// below safe so a malformed classification can never relax a verdict.
func (l SafetyLevel) rank() int {
	switch l {
	case SafetySafe:
		return 1
	case SafetyCaution:
		return 2
	case SafetyAvoid:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is one of the three defined safety levels.
func (l SafetyLevel) Valid() bool { return l.rank() > 0 }

// Stricter returns the more severe of the two levels. Grounding output is
// merged through this so it can only escalate a rule-based level, never
// silently downgrade it.
func (l SafetyLevel) Stricter(other SafetyLevel) SafetyLevel {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// SafetyFromSeverity maps the maximum flag severity to a safety level.
// A zero severity (no flags) maps to safe.
func SafetyFromSeverity(max Severity) SafetyLevel {
	switch {
	case max >= SeverityDanger:
		return SafetyAvoid
	case max == SeverityCaution:
		return SafetyCaution
	default:
		return SafetySafe
	}
}

// Flag is a single rule-evaluator finding against one nutrient or allergen.
type Flag struct {
	// NutrientKey identifies the nutrient (or allergen tag) that triggered
	// the flag.
	NutrientKey string `json:"nutrient_key"`

	// Severity classifies the finding.
	Severity Severity `json:"severity"`

	// Reason is the human-readable explanation for the flag.
	Reason string `json:"reason"`
}

// SortFlags returns a copy of flags ordered by severity descending. The sort
// is stable so flags of equal severity keep their rule-evaluation order,
// which keeps evaluator output bit-for-bit reproducible.
func SortFlags(flags []Flag) []Flag {
	out := make([]Flag, len(flags))
	copy(out, flags)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}

// MaxSeverity returns the highest severity among flags, or zero when the
// slice is empty.
func MaxSeverity(flags []Flag) Severity {
	var max Severity
	for _, f := range flags {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}

// Verdict is the terminal artifact of one analysis request. It is immutable
// and persisted as-is by the storage collaborator.
type Verdict struct {
	// ID uniquely identifies this verdict (a UUID).
	ID string `json:"id"`

	// ProductName is the best-known product name, empty when OCR-only.
	ProductName string `json:"product_name,omitempty"`

	// SafetyLevel is the final classification after merging the rule-based
	// level with the grounding classification.
	SafetyLevel SafetyLevel `json:"safety_level"`

	// Flags lists the rule evaluator's findings, severity descending.
	Flags []Flag `json:"flags,omitempty"`

	// Rationale is the explanation text, grounded when available and
	// templated from flags otherwise.
	Rationale string `json:"rationale"`

	// SuggestedAlternatives lists alternative products or adjustments.
	SuggestedAlternatives []string `json:"suggested_alternatives,omitempty"`

	// GroundingApplied is false when the rationale fell back to the
	// rule-only template.
	GroundingApplied bool `json:"grounding_applied"`

	// Profile is the fused nutrition profile the verdict was derived from.
	Profile FusedNutritionProfile `json:"profile,omitempty"`

	// CreatedAt records when the verdict was assembled.
	CreatedAt time.Time `json:"created_at"`
}

// GroundingRequest is the structured payload sent to the grounded-reasoning
// collaborator. The payload is identical on every retry attempt.
type GroundingRequest struct {
	Profile     FusedNutritionProfile `json:"fused_profile"`
	Flags       []Flag                `json:"flags"`
	User        UserHealthProfile     `json:"user_profile"`
	ProductName string                `json:"product_name,omitempty"`
	Brand       string                `json:"brand,omitempty"`
	Ingredients string                `json:"ingredients,omitempty"`
	Categories  string                `json:"categories,omitempty"`

	// BarcodeUsed tells the reasoning service whether the profile is backed
	// by a database record or by OCR alone, so it can qualify its analysis.
	BarcodeUsed bool `json:"barcode_used"`
}

// GroundingResponse is the validated output of a successful grounding call.
type GroundingResponse struct {
	// Rationale is the grounded explanation text.
	Rationale string `json:"rationale"`

	// Safety is the collaborator's explicit safety classification.
	Safety SafetyLevel `json:"safety"`

	// Alternatives lists suggested alternatives, possibly empty.
	Alternatives []string `json:"alternatives,omitempty"`
}

// FallbackRationale builds the templated rule-only rationale used when
// grounding is unavailable or malformed. It mentions every flagged nutrient
// so the user still sees why the verdict was reached.
func FallbackRationale(level SafetyLevel, flags []Flag) string {
	var b strings.Builder
	switch level {
	case SafetyAvoid:
		b.WriteString("This product conflicts with your health profile.")
	case SafetyCaution:
		b.WriteString("This product warrants caution given your health profile.")
	default:
		b.WriteString("No conflicts with your health profile were detected.")
	}
	for _, f := range flags {
		b.WriteString(" ")
		b.WriteString(strings.ToUpper(f.Severity.String()))
		b.WriteString(": ")
		b.WriteString(f.Reason)
		if !strings.HasSuffix(f.Reason, ".") {
			b.WriteString(".")
		}
	}
	return b.String()
}
