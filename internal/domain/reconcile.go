package domain

import (
	"fmt"
	"math"
)

// epsilon guards relative-difference division against zero denominators.
const epsilon = 1e-9

// ReconcilerConfig tunes the two-source fusion policy.
type ReconcilerConfig struct {
	// AgreementThreshold is the maximum relative difference at which two
	// sources are considered to agree on a nutrient value.
	AgreementThreshold float64 `yaml:"agreement_threshold" json:"agreement_threshold" validate:"gt=0,lte=1"`

	// ConflictPenalty scales down the confidence of a conflicted value.
	ConflictPenalty float64 `yaml:"conflict_penalty" json:"conflict_penalty" validate:"gt=0,lte=1"`
}

// DefaultReconcilerConfig returns the standard fusion policy: 5% relative
// agreement and a 50% confidence penalty on conflicts.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		AgreementThreshold: 0.05,
		ConflictPenalty:    0.5,
	}
}

// Reconciler fuses normalized nutrient entries from the label OCR path and
// the barcode lookup path into a single profile. Fusion is a pure function of
// its inputs: the same entries always produce the same profile.
type Reconciler struct {
	config ReconcilerConfig
}

// NewReconciler creates a Reconciler with validated configuration.
func NewReconciler(config ReconcilerConfig) (*Reconciler, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("reconciler configuration: %w", err)
	}
	return &Reconciler{config: config}, nil
}

// Reconcile fuses the two sources into one profile.
//
// A nutrient present in only one source is adopted as-is with that source's
// provenance and confidence. When both sources report a nutrient, values
// within the agreement threshold fuse into a confidence-weighted average
// carrying the higher of the two confidences; values beyond it keep the
// barcode value with Conflict set and confidence reduced to the penalized
// minimum of the two. Nutrients absent from both sources are omitted.
//
// Reconcile returns ErrNoNutritionData when both inputs are empty.
func (r *Reconciler) Reconcile(ocr, barcode []NormalizedEntry) (FusedNutritionProfile, error) {
	if len(ocr) == 0 && len(barcode) == 0 {
		return nil, ErrNoNutritionData
	}

	barcodeByKey := collapseEntries(barcode, nil)
	ocrByKey := collapseEntries(ocr, barcodeByKey)

	profile := make(FusedNutritionProfile, len(barcodeByKey)+len(ocrByKey))

	for key, b := range barcodeByKey {
		o, both := ocrByKey[key]
		if !both {
			profile[key] = FusedValue{
				Value:      b.Value,
				Unit:       b.Unit,
				Confidence: b.Confidence,
				Provenance: ProvenanceBarcode,
			}
			continue
		}
		profile[key] = r.fuse(o, b)
	}

	for key, o := range ocrByKey {
		if _, both := barcodeByKey[key]; both {
			continue
		}
		profile[key] = FusedValue{
			Value:      o.Value,
			Unit:       o.Unit,
			Confidence: o.Confidence,
			Provenance: ProvenanceOCR,
		}
	}

	return profile, nil
}

// fuse combines one nutrient reported by both sources.
func (r *Reconciler) fuse(o, b NormalizedEntry) FusedValue {
	denom := math.Max(math.Abs(b.Value), epsilon)
	diff := math.Abs(o.Value-b.Value) / denom

	if diff <= r.config.AgreementThreshold {
		weight := o.Confidence + b.Confidence
		value := b.Value
		if weight > 0 {
			value = (o.Value*o.Confidence + b.Value*b.Confidence) / weight
		}
		return FusedValue{
			Value:      value,
			Unit:       b.Unit,
			Confidence: math.Max(o.Confidence, b.Confidence),
			Provenance: ProvenanceBoth,
		}
	}

	// Disagreement: the curated database record wins, but the conflict is
	// recorded and the confidence penalized so downstream rules treat the
	// value as uncertain.
	return FusedValue{
		Value:      b.Value,
		Unit:       b.Unit,
		Confidence: math.Min(o.Confidence, b.Confidence) * r.config.ConflictPenalty,
		Provenance: ProvenanceBoth,
		Conflict:   true,
	}
}

// collapseEntries reduces duplicate readings of the same nutrient within one
// source to a single entry. The highest-confidence reading wins; on a
// confidence tie the reading closest to the reference source's value wins
// when a reference exists, otherwise the earliest reading is kept.
func collapseEntries(entries []NormalizedEntry, reference map[NutrientKey]NormalizedEntry) map[NutrientKey]NormalizedEntry {
	out := make(map[NutrientKey]NormalizedEntry, len(entries))
	for _, e := range entries {
		cur, seen := out[e.Key]
		if !seen {
			out[e.Key] = e
			continue
		}
		if e.Confidence > cur.Confidence {
			out[e.Key] = e
			continue
		}
		if e.Confidence == cur.Confidence && reference != nil {
			if ref, ok := reference[e.Key]; ok {
				if math.Abs(e.Value-ref.Value) < math.Abs(cur.Value-ref.Value) {
					out[e.Key] = e
				}
			}
		}
	}
	return out
}
