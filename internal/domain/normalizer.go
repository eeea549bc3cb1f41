package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// foldCaser is a package-level Unicode case folder so name preparation does
// not allocate a new caser per call.
var foldCaser = cases.Fold()

// canonicalUnits maps every canonical nutrient key to the unit its fused
// values are expressed in.
var canonicalUnits = map[NutrientKey]Unit{
	NutrientEnergyKcal:    UnitKcal,
	NutrientFatG:          UnitGram,
	NutrientSaturatedFatG: UnitGram,
	NutrientTransFatG:     UnitGram,
	NutrientCholesterolMg: UnitMilligram,
	NutrientSodiumMg:      UnitMilligram,
	NutrientCarbsG:        UnitGram,
	NutrientSugarsG:       UnitGram,
	NutrientFiberG:        UnitGram,
	NutrientProteinG:      UnitGram,
}

// dailyValues holds the FDA reference daily values used to resolve %DV
// readings, expressed in each nutrient's canonical unit. Trans fat has no
// reference daily value, so %DV trans fat readings fail conversion.
var dailyValues = map[NutrientKey]float64{
	NutrientEnergyKcal:    2000,
	NutrientFatG:          78,
	NutrientSaturatedFatG: 20,
	NutrientCholesterolMg: 300,
	NutrientSodiumMg:      2300,
	NutrientCarbsG:        275,
	NutrientSugarsG:       50,
	NutrientFiberG:        28,
	NutrientProteinG:      50,
}

// nutrientAliases maps case-folded source names to canonical keys. It covers
// both US label wording and the Open Food Facts field vocabulary.
var nutrientAliases = map[string]NutrientKey{
	"calories":           NutrientEnergyKcal,
	"energy":             NutrientEnergyKcal,
	"energy-kcal":        NutrientEnergyKcal,
	"fat":                NutrientFatG,
	"total fat":          NutrientFatG,
	"saturated fat":      NutrientSaturatedFatG,
	"saturated-fat":      NutrientSaturatedFatG,
	"sat fat":            NutrientSaturatedFatG,
	"trans fat":          NutrientTransFatG,
	"trans-fat":          NutrientTransFatG,
	"cholesterol":        NutrientCholesterolMg,
	"sodium":             NutrientSodiumMg,
	"carbohydrates":      NutrientCarbsG,
	"total carbohydrate": NutrientCarbsG,
	"total carbs":        NutrientCarbsG,
	"carbs":              NutrientCarbsG,
	"sugars":             NutrientSugarsG,
	"total sugars":       NutrientSugarsG,
	"fiber":              NutrientFiberG,
	"fibre":              NutrientFiberG,
	"dietary fiber":      NutrientFiberG,
	"protein":            NutrientProteinG,
	"proteins":           NutrientProteinG,
}

// sortedAliases is the alias vocabulary in deterministic order, used for
// fuzzy matching so ties always resolve the same way.
var sortedAliases = func() []string {
	out := make([]string, 0, len(nutrientAliases))
	for alias := range nutrientAliases {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}()

// NormalizerConfig controls how tolerant nutrient name matching is.
type NormalizerConfig struct {
	// MaxNameDistance is the maximum Levenshtein distance allowed between a
	// prepared source name and an alias before the name is rejected as
	// unrecognized. Zero disables fuzzy matching.
	MaxNameDistance int `yaml:"max_name_distance" json:"max_name_distance" validate:"min=0,max=4"`
}

// DefaultNormalizerConfig returns the normalizer defaults: fuzzy matching
// with an edit distance of two, enough to absorb common OCR misreads
// ("Sodiurn", "Protien") without conflating distinct nutrients.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{MaxNameDistance: 2}
}

// Normalizer canonicalizes heterogeneous nutrient readings from both sources
// into the engine's single schema. It is stateless after construction and
// safe for concurrent use; conversion is deterministic and lossless within
// 1e-6 relative floating-point tolerance.
type Normalizer struct {
	config NormalizerConfig
}

// NewNormalizer creates a Normalizer with validated configuration.
func NewNormalizer(config NormalizerConfig) (*Normalizer, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("normalizer configuration: %w", err)
	}
	return &Normalizer{config: config}, nil
}

// Normalize maps a raw (name, value, unit) triple to a canonical entry.
// It fails with ErrUnrecognizedNutrient when the name cannot be mapped to a
// canonical key, or ErrUnitConversion when the unit is incompatible with the
// nutrient's dimension. The returned entry carries no confidence; callers
// attach the source confidence.
func (n *Normalizer) Normalize(name string, value float64, rawUnit string) (NormalizedEntry, error) {
	key, err := n.CanonicalKey(name)
	if err != nil {
		return NormalizedEntry{}, err
	}

	canonical := canonicalUnits[key]
	converted, err := convertValue(key, value, rawUnit, canonical)
	if err != nil {
		return NormalizedEntry{}, err
	}

	return NormalizedEntry{Key: key, Value: converted, Unit: canonical}, nil
}

// NormalizeOCR canonicalizes an OCR extraction, attaching each token's
// confidence. Tokens that fail normalization are dropped and reported in the
// second return value; dropping a field is never fatal to the request.
func (n *Normalizer) NormalizeOCR(extraction OCRExtraction) ([]NormalizedEntry, []error) {
	entries := make([]NormalizedEntry, 0, len(extraction))
	var dropped []error
	for _, tok := range extraction {
		entry, err := n.Normalize(tok.NutrientName, tok.RawValue, tok.RawUnit)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		entry.Confidence = clampConfidence(tok.Confidence)
		entries = append(entries, entry)
	}
	return entries, dropped
}

// NormalizeMeasurements canonicalizes a product database record's nutrient
// amounts, attaching the configured source confidence to every entry.
func (n *Normalizer) NormalizeMeasurements(measurements []RawMeasurement, confidence float64) ([]NormalizedEntry, []error) {
	entries := make([]NormalizedEntry, 0, len(measurements))
	var dropped []error
	for _, m := range measurements {
		entry, err := n.Normalize(m.NutrientName, m.Value, m.Unit)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		entry.Confidence = clampConfidence(confidence)
		entries = append(entries, entry)
	}
	return entries, dropped
}

// CanonicalKey resolves a raw nutrient name to its canonical key, first by
// exact alias lookup and then by bounded Levenshtein distance over the alias
// vocabulary.
func (n *Normalizer) CanonicalKey(name string) (NutrientKey, error) {
	prepared := prepareName(name)
	if prepared == "" {
		return "", &NormalizationError{Nutrient: name, Err: ErrUnrecognizedNutrient}
	}

	if key, ok := nutrientAliases[prepared]; ok {
		return key, nil
	}

	if n.config.MaxNameDistance > 0 {
		best := n.config.MaxNameDistance + 1
		var bestKey NutrientKey
		for _, alias := range sortedAliases {
			if d := levenshtein.ComputeDistance(prepared, alias); d < best {
				best = d
				bestKey = nutrientAliases[alias]
			}
		}
		if best <= n.config.MaxNameDistance {
			return bestKey, nil
		}
	}

	return "", &NormalizationError{Nutrient: name, Err: ErrUnrecognizedNutrient}
}

// prepareName folds case, trims punctuation OCR commonly attaches to label
// names, and collapses interior whitespace.
func prepareName(name string) string {
	s := foldCaser.String(strings.TrimSpace(name))
	s = strings.Trim(s, ":.*")
	return strings.Join(strings.Fields(s), " ")
}

// convertValue converts a reading into the nutrient's canonical unit.
func convertValue(key NutrientKey, value float64, rawUnit string, canonical Unit) (float64, error) {
	unit, err := parseUnit(rawUnit, canonical)
	if err != nil {
		return 0, &NormalizationError{Nutrient: string(key), Unit: rawUnit, Err: err}
	}

	if unit == UnitPercentDV {
		dv, ok := dailyValues[key]
		if !ok {
			return 0, &NormalizationError{Nutrient: string(key), Unit: rawUnit, Err: ErrUnitConversion}
		}
		return value / 100 * dv, nil
	}

	if isEnergy(key) != isEnergyUnit(unit) {
		return 0, &NormalizationError{Nutrient: string(key), Unit: rawUnit, Err: ErrUnitConversion}
	}

	if isEnergy(key) {
		if unit == UnitKilojoule {
			return value / 4.184, nil
		}
		return value, nil
	}

	// Mass: convert via grams.
	grams := value * massToGrams(unit)
	switch canonical {
	case UnitMilligram:
		return grams * 1000, nil
	default:
		return grams, nil
	}
}

// parseUnit maps raw unit text to a Unit. An empty unit assumes the
// nutrient's canonical unit, matching label conventions where the unit column
// is implicit.
func parseUnit(raw string, canonical Unit) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return canonical, nil
	case "g", "gram", "grams":
		return UnitGram, nil
	case "mg":
		return UnitMilligram, nil
	case "mcg", "ug", "µg":
		return UnitMicrogram, nil
	case "kcal", "cal", "calories":
		return UnitKcal, nil
	case "kj":
		return UnitKilojoule, nil
	case "%", "%dv", "% dv", "percent":
		return UnitPercentDV, nil
	default:
		return "", ErrUnitConversion
	}
}

func isEnergy(key NutrientKey) bool { return canonicalUnits[key] == UnitKcal }

func isEnergyUnit(u Unit) bool { return u == UnitKcal || u == UnitKilojoule }

func massToGrams(u Unit) float64 {
	switch u {
	case UnitMilligram:
		return 1e-3
	case UnitMicrogram:
		return 1e-6
	default:
		return 1
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// CanonicalUnit returns the canonical unit for a nutrient key.
func CanonicalUnit(key NutrientKey) Unit { return canonicalUnits[key] }
