// Package domain contains pure, dependency-light domain models and the
// decision engine for nutrition reconciliation and personalized safety
// verdicts.
package domain

import (
	"time"
)

// NutrientKey is a canonical identifier for a nutrient, independent of the
// source wording or unit (e.g. "sodium_mg"). All engine components key
// nutrition data by NutrientKey.
type NutrientKey string

// Canonical nutrient keys. The vocabulary follows the per-serving fields
// exposed by the Open Food Facts nutriments record.
const (
	NutrientEnergyKcal    NutrientKey = "energy_kcal"
	NutrientFatG          NutrientKey = "fat_g"
	NutrientSaturatedFatG NutrientKey = "saturated_fat_g"
	NutrientTransFatG     NutrientKey = "trans_fat_g"
	NutrientCholesterolMg NutrientKey = "cholesterol_mg"
	NutrientSodiumMg      NutrientKey = "sodium_mg"
	NutrientCarbsG        NutrientKey = "carbohydrates_g"
	NutrientSugarsG       NutrientKey = "sugars_g"
	NutrientFiberG        NutrientKey = "fiber_g"
	NutrientProteinG      NutrientKey = "protein_g"
)

// Unit identifies a measurement unit accepted by the normalizer.
type Unit string

// Units understood by the normalizer. UnitPercentDV is resolved against the
// reference daily value for the nutrient when one is known.
const (
	UnitGram      Unit = "g"
	UnitMilligram Unit = "mg"
	UnitMicrogram Unit = "mcg"
	UnitKcal      Unit = "kcal"
	UnitKilojoule Unit = "kj"
	UnitPercentDV Unit = "%dv"
)

// OCREntry is a single candidate nutrient token extracted from a label image.
// Entries are noisy: the same nutrient may appear multiple times with
// conflicting values.
type OCREntry struct {
	// NutrientName is the raw label text for the nutrient (e.g. "Total Fat").
	NutrientName string `json:"nutrient_name"`

	// RawValue is the numeric value as read from the label.
	RawValue float64 `json:"raw_value"`

	// RawUnit is the unit text as read from the label (e.g. "mg", "%").
	RawUnit string `json:"raw_unit"`

	// Confidence is the extractor's confidence in this token, in [0,1].
	Confidence float64 `json:"confidence"`
}

// OCRExtraction is the ordered sequence of candidate tokens produced by one
// label capture. It is immutable once produced; an empty extraction means the
// OCR collaborator found nothing, which is not an error.
type OCRExtraction []OCREntry

// RawMeasurement is a nutrient amount as reported by the product database,
// before canonicalization.
type RawMeasurement struct {
	// NutrientName is the database's field name for the nutrient.
	NutrientName string `json:"nutrient_name"`

	// Value is the per-serving amount.
	Value float64 `json:"value"`

	// Unit is the unit the database reports the amount in.
	Unit string `json:"unit"`
}

// BarcodeRecord is the structured product record returned by the nutrition
// lookup collaborator for a decoded barcode. It is immutable once fetched.
type BarcodeRecord struct {
	// Barcode is the EAN/UPC identifier the record was fetched for.
	Barcode string `json:"barcode"`

	// ProductName is the database's display name for the product.
	ProductName string `json:"product_name"`

	// Brand is the product brand, when known.
	Brand string `json:"brand,omitempty"`

	// Ingredients is the free-form ingredients list text.
	Ingredients string `json:"ingredients,omitempty"`

	// Categories is the database's category string for the product.
	Categories string `json:"categories,omitempty"`

	// ImageURL points at a product photo, when available.
	ImageURL string `json:"image_url,omitempty"`

	// Nutrients holds the per-serving nutrient amounts, un-normalized.
	Nutrients []RawMeasurement `json:"nutrients"`

	// FetchedAt records when the lookup completed.
	FetchedAt time.Time `json:"fetched_at"`
}

// NormalizedEntry is a nutrient amount after canonicalization: the key is
// canonical, the value is expressed in the key's canonical unit, and the
// confidence reflects the source's trust in the reading.
type NormalizedEntry struct {
	Key        NutrientKey
	Value      float64
	Unit       Unit
	Confidence float64
}

// Provenance records which source(s) contributed a fused nutrient value.
type Provenance string

// Provenance labels for fused values.
const (
	// ProvenanceBarcode marks values supplied only by the product database.
	ProvenanceBarcode Provenance = "barcode"

	// ProvenanceOCR marks values supplied only by label OCR.
	ProvenanceOCR Provenance = "ocr"

	// ProvenanceBoth marks values where both sources agreed and were fused.
	ProvenanceBoth Provenance = "both"

	// ProvenanceDefault marks values injected from configuration defaults.
	// The reconciler itself never emits this; it exists for callers that
	// pre-seed profiles.
	ProvenanceDefault Provenance = "default"
)

// FusedValue is one reconciled nutrient amount with its provenance metadata.
type FusedValue struct {
	// Value is the reconciled per-serving amount in the canonical unit.
	Value float64 `json:"value"`

	// Unit is the canonical unit for the nutrient key.
	Unit Unit `json:"unit"`

	// Confidence is the reconciled confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Provenance records which source(s) contributed the value.
	Provenance Provenance `json:"provenance"`

	// Conflict is true when both sources reported the nutrient but
	// disagreed beyond the agreement threshold. Downstream rationale text
	// surfaces this to the user.
	Conflict bool `json:"conflict,omitempty"`
}

// FusedNutritionProfile maps canonical nutrient keys to reconciled values.
// Every key observed in either input source appears exactly once; nutrients
// absent from both sources are omitted entirely; a missing key means
// "unknown", never "zero". The profile is created once per request and never
// mutated afterwards.
type FusedNutritionProfile map[NutrientKey]FusedValue

// MacroTargets holds a user's daily macro split goals as percentages of
// calorie intake.
type MacroTargets struct {
	ProteinPct int `json:"protein_pct"`
	CarbsPct   int `json:"carbs_pct"`
	FatsPct    int `json:"fats_pct"`
}

// UserHealthProfile describes the caller-owned health constraints evaluated
// against a fused profile. It is read-only to the engine.
type UserHealthProfile struct {
	// Allergies holds allergen tags (e.g. "nuts", "dairy").
	Allergies []string `json:"allergies,omitempty"`

	// ChronicConditions holds condition tags (e.g. "hypertension").
	ChronicConditions []string `json:"chronic_conditions,omitempty"`

	// Goals holds goal tags (e.g. "weight_management").
	Goals []string `json:"goals,omitempty"`

	// WeightLbs and HeightIn describe the user for grounding context.
	WeightLbs int `json:"weight_lbs,omitempty"`
	HeightIn  int `json:"height_in,omitempty"`

	// ActivityLevel is a free-form activity descriptor.
	ActivityLevel string `json:"activity_level,omitempty"`

	// DietaryPreference is a free-form diet descriptor (e.g. "low sodium").
	DietaryPreference string `json:"dietary_preference,omitempty"`

	// CalorieGoal is the user's daily calorie target; zero means unset.
	CalorieGoal int `json:"calorie_goal,omitempty"`

	// Macros holds the user's macro split targets, when set.
	Macros *MacroTargets `json:"macro_targets,omitempty"`
}
