package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizer(t *testing.T) {
	tests := []struct {
		name    string
		config  NormalizerConfig
		wantErr bool
	}{
		{name: "default config", config: DefaultNormalizerConfig()},
		{name: "fuzzy matching disabled", config: NormalizerConfig{MaxNameDistance: 0}},
		{name: "distance too large", config: NormalizerConfig{MaxNameDistance: 9}, wantErr: true},
		{name: "negative distance", config: NormalizerConfig{MaxNameDistance: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNormalizer(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, n)
		})
	}
}

func TestNormalizerCanonicalKey(t *testing.T) {
	n, err := NewNormalizer(DefaultNormalizerConfig())
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		want    NutrientKey
		wantErr bool
	}{
		{name: "exact label wording", input: "Total Fat", want: NutrientFatG},
		{name: "open food facts field", input: "saturated-fat", want: NutrientSaturatedFatG},
		{name: "case folded", input: "SODIUM", want: NutrientSodiumMg},
		{name: "trailing colon", input: "Cholesterol:", want: NutrientCholesterolMg},
		{name: "collapsed whitespace", input: "  dietary   fiber ", want: NutrientFiberG},
		{name: "ocr misread sodium", input: "Sodiurn", want: NutrientSodiumMg},
		{name: "ocr misread protein", input: "Protien", want: NutrientProteinG},
		{name: "singular sugar", input: "Sugar", want: NutrientSugarsG},
		{name: "unrelated word", input: "Serving Size", wantErr: true},
		{name: "empty name", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := n.CanonicalKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnrecognizedNutrient)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestNormalizerCanonicalKeyFuzzyDisabled(t *testing.T) {
	n, err := NewNormalizer(NormalizerConfig{MaxNameDistance: 0})
	require.NoError(t, err)

	_, err = n.CanonicalKey("Sodiurn")
	assert.ErrorIs(t, err, ErrUnrecognizedNutrient)

	key, err := n.CanonicalKey("Sodium")
	require.NoError(t, err)
	assert.Equal(t, NutrientSodiumMg, key)
}

func TestNormalizerNormalize(t *testing.T) {
	n, err := NewNormalizer(DefaultNormalizerConfig())
	require.NoError(t, err)

	tests := []struct {
		name      string
		nutrient  string
		value     float64
		unit      string
		wantKey   NutrientKey
		wantValue float64
		wantUnit  Unit
		wantErr   error
	}{
		{
			name:     "grams to milligrams",
			nutrient: "sodium", value: 0.6, unit: "g",
			wantKey: NutrientSodiumMg, wantValue: 600, wantUnit: UnitMilligram,
		},
		{
			name:     "milligrams to grams",
			nutrient: "Total Fat", value: 5000, unit: "mg",
			wantKey: NutrientFatG, wantValue: 5, wantUnit: UnitGram,
		},
		{
			name:     "micrograms to milligrams",
			nutrient: "cholesterol", value: 20000, unit: "mcg",
			wantKey: NutrientCholesterolMg, wantValue: 20, wantUnit: UnitMilligram,
		},
		{
			name:     "kilojoules to kcal",
			nutrient: "energy", value: 836.8, unit: "kJ",
			wantKey: NutrientEnergyKcal, wantValue: 200, wantUnit: UnitKcal,
		},
		{
			name:     "implicit unit assumes canonical",
			nutrient: "Calories", value: 250, unit: "",
			wantKey: NutrientEnergyKcal, wantValue: 250, wantUnit: UnitKcal,
		},
		{
			name:     "percent daily value sodium",
			nutrient: "sodium", value: 25, unit: "%",
			wantKey: NutrientSodiumMg, wantValue: 575, wantUnit: UnitMilligram,
		},
		{
			name:     "percent daily value trans fat has no reference",
			nutrient: "trans fat", value: 10, unit: "%",
			wantErr: ErrUnitConversion,
		},
		{
			name:     "energy unit on mass nutrient",
			nutrient: "protein", value: 10, unit: "kcal",
			wantErr: ErrUnitConversion,
		},
		{
			name:     "mass unit on energy nutrient",
			nutrient: "calories", value: 10, unit: "g",
			wantErr: ErrUnitConversion,
		},
		{
			name:     "unknown unit",
			nutrient: "protein", value: 10, unit: "oz",
			wantErr: ErrUnitConversion,
		},
		{
			name:     "unknown nutrient",
			nutrient: "vitamin q", value: 10, unit: "g",
			wantErr: ErrUnrecognizedNutrient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := n.Normalize(tt.nutrient, tt.value, tt.unit)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				var nerr *NormalizationError
				assert.ErrorAs(t, err, &nerr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, entry.Key)
			assert.InEpsilon(t, tt.wantValue, entry.Value, 1e-6)
			assert.Equal(t, tt.wantUnit, entry.Unit)
		})
	}
}

func TestNormalizerNormalizeDeterministic(t *testing.T) {
	n, err := NewNormalizer(DefaultNormalizerConfig())
	require.NoError(t, err)

	first, err := n.Normalize("Sodium", 0.6, "g")
	require.NoError(t, err)
	second, err := n.Normalize("Sodium", 0.6, "g")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizerNormalizeOCR(t *testing.T) {
	n, err := NewNormalizer(DefaultNormalizerConfig())
	require.NoError(t, err)

	extraction := OCRExtraction{
		{NutrientName: "Total Fat", RawValue: 12, RawUnit: "g", Confidence: 0.91},
		{NutrientName: "Serving Size", RawValue: 2, RawUnit: "", Confidence: 0.99},
		{NutrientName: "Sodium", RawValue: 600, RawUnit: "mg", Confidence: 1.7},
	}

	entries, dropped := n.NormalizeOCR(extraction)
	require.Len(t, entries, 2)
	require.Len(t, dropped, 1)
	assert.ErrorIs(t, dropped[0], ErrUnrecognizedNutrient)

	assert.Equal(t, NutrientFatG, entries[0].Key)
	assert.Equal(t, 0.91, entries[0].Confidence)

	// Out-of-range confidences clamp into [0,1].
	assert.Equal(t, NutrientSodiumMg, entries[1].Key)
	assert.Equal(t, 1.0, entries[1].Confidence)
}

func TestNormalizerNormalizeMeasurements(t *testing.T) {
	n, err := NewNormalizer(DefaultNormalizerConfig())
	require.NoError(t, err)

	measurements := []RawMeasurement{
		{NutrientName: "energy-kcal", Value: 250, Unit: "kcal"},
		{NutrientName: "sodium", Value: 0.6, Unit: "g"},
		{NutrientName: "mystery", Value: 1, Unit: "g"},
	}

	entries, dropped := n.NormalizeMeasurements(measurements, 0.9)
	require.Len(t, entries, 2)
	require.Len(t, dropped, 1)

	for _, e := range entries {
		assert.Equal(t, 0.9, e.Confidence)
	}
	assert.InEpsilon(t, 600.0, entries[1].Value, 1e-6)
}
