package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReconciler(t *testing.T) {
	tests := []struct {
		name    string
		config  ReconcilerConfig
		wantErr bool
	}{
		{name: "default config", config: DefaultReconcilerConfig()},
		{name: "zero agreement threshold", config: ReconcilerConfig{AgreementThreshold: 0, ConflictPenalty: 0.5}, wantErr: true},
		{name: "zero conflict penalty", config: ReconcilerConfig{AgreementThreshold: 0.05, ConflictPenalty: 0}, wantErr: true},
		{name: "threshold above one", config: ReconcilerConfig{AgreementThreshold: 1.5, ConflictPenalty: 0.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReconciler(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, r)
		})
	}
}

func TestReconcileSingleSource(t *testing.T) {
	r, err := NewReconciler(DefaultReconcilerConfig())
	require.NoError(t, err)

	ocrOnly := []NormalizedEntry{
		{Key: NutrientSodiumMg, Value: 600, Unit: UnitMilligram, Confidence: 0.8},
	}
	barcodeOnly := []NormalizedEntry{
		{Key: NutrientFatG, Value: 12, Unit: UnitGram, Confidence: 0.9},
	}

	profile, err := r.Reconcile(ocrOnly, nil)
	require.NoError(t, err)
	require.Len(t, profile, 1)
	got := profile[NutrientSodiumMg]
	assert.Equal(t, 600.0, got.Value)
	assert.Equal(t, 0.8, got.Confidence)
	assert.Equal(t, ProvenanceOCR, got.Provenance)
	assert.False(t, got.Conflict)

	profile, err = r.Reconcile(nil, barcodeOnly)
	require.NoError(t, err)
	require.Len(t, profile, 1)
	got = profile[NutrientFatG]
	assert.Equal(t, 12.0, got.Value)
	assert.Equal(t, ProvenanceBarcode, got.Provenance)
}

func TestReconcileAgreement(t *testing.T) {
	r, err := NewReconciler(DefaultReconcilerConfig())
	require.NoError(t, err)

	ocr := []NormalizedEntry{{Key: NutrientSodiumMg, Value: 610, Unit: UnitMilligram, Confidence: 0.8}}
	barcode := []NormalizedEntry{{Key: NutrientSodiumMg, Value: 600, Unit: UnitMilligram, Confidence: 0.9}}

	profile, err := r.Reconcile(ocr, barcode)
	require.NoError(t, err)

	got := profile[NutrientSodiumMg]
	// Confidence-weighted average of (610, 0.8) and (600, 0.9).
	assert.InEpsilon(t, (610*0.8+600*0.9)/1.7, got.Value, 1e-9)
	assert.Equal(t, 0.9, got.Confidence, "agreed value carries the higher source confidence")
	assert.Equal(t, ProvenanceBoth, got.Provenance)
	assert.False(t, got.Conflict)
}

func TestReconcileConflict(t *testing.T) {
	r, err := NewReconciler(DefaultReconcilerConfig())
	require.NoError(t, err)

	ocr := []NormalizedEntry{{Key: NutrientSodiumMg, Value: 900, Unit: UnitMilligram, Confidence: 0.8}}
	barcode := []NormalizedEntry{{Key: NutrientSodiumMg, Value: 600, Unit: UnitMilligram, Confidence: 0.9}}

	profile, err := r.Reconcile(ocr, barcode)
	require.NoError(t, err)

	got := profile[NutrientSodiumMg]
	assert.Equal(t, 600.0, got.Value, "the database record wins on conflict")
	assert.InEpsilon(t, 0.8*0.5, got.Confidence, 1e-9)
	assert.LessOrEqual(t, got.Confidence, 0.5*0.8, "conflicted confidence never exceeds the penalized minimum")
	assert.Equal(t, ProvenanceBoth, got.Provenance)
	assert.True(t, got.Conflict)
}

func TestReconcileZeroBarcodeValue(t *testing.T) {
	r, err := NewReconciler(DefaultReconcilerConfig())
	require.NoError(t, err)

	// A zero database value with a nonzero OCR reading must conflict rather
	// than divide by zero.
	ocr := []NormalizedEntry{{Key: NutrientTransFatG, Value: 0.5, Unit: UnitGram, Confidence: 0.7}}
	barcode := []NormalizedEntry{{Key: NutrientTransFatG, Value: 0, Unit: UnitGram, Confidence: 0.9}}

	profile, err := r.Reconcile(ocr, barcode)
	require.NoError(t, err)

	got := profile[NutrientTransFatG]
	assert.Equal(t, 0.0, got.Value)
	assert.True(t, got.Conflict)
}

func TestReconcileOCRDuplicates(t *testing.T) {
	r, err := NewReconciler(DefaultReconcilerConfig())
	require.NoError(t, err)

	t.Run("highest confidence wins", func(t *testing.T) {
		ocr := []NormalizedEntry{
			{Key: NutrientSodiumMg, Value: 100, Unit: UnitMilligram, Confidence: 0.7},
			{Key: NutrientSodiumMg, Value: 200, Unit: UnitMilligram, Confidence: 0.9},
		}
		profile, err := r.Reconcile(ocr, nil)
		require.NoError(t, err)
		assert.Equal(t, 200.0, profile[NutrientSodiumMg].Value)
	})

	t.Run("confidence tie resolved by closeness to barcode", func(t *testing.T) {
		ocr := []NormalizedEntry{
			{Key: NutrientSodiumMg, Value: 500, Unit: UnitMilligram, Confidence: 0.8},
			{Key: NutrientSodiumMg, Value: 610, Unit: UnitMilligram, Confidence: 0.8},
		}
		barcode := []NormalizedEntry{{Key: NutrientSodiumMg, Value: 600, Unit: UnitMilligram, Confidence: 0.9}}
		profile, err := r.Reconcile(ocr, barcode)
		require.NoError(t, err)

		got := profile[NutrientSodiumMg]
		// 610 is closer to the barcode's 600 and agrees within 5%.
		assert.Equal(t, ProvenanceBoth, got.Provenance)
		assert.False(t, got.Conflict)
	})

	t.Run("confidence tie without barcode keeps first seen", func(t *testing.T) {
		ocr := []NormalizedEntry{
			{Key: NutrientSodiumMg, Value: 500, Unit: UnitMilligram, Confidence: 0.8},
			{Key: NutrientSodiumMg, Value: 610, Unit: UnitMilligram, Confidence: 0.8},
		}
		profile, err := r.Reconcile(ocr, nil)
		require.NoError(t, err)
		assert.Equal(t, 500.0, profile[NutrientSodiumMg].Value)
	})
}

func TestReconcileOmitsMissingNutrients(t *testing.T) {
	r, err := NewReconciler(DefaultReconcilerConfig())
	require.NoError(t, err)

	ocr := []NormalizedEntry{{Key: NutrientSodiumMg, Value: 600, Unit: UnitMilligram, Confidence: 0.8}}
	profile, err := r.Reconcile(ocr, nil)
	require.NoError(t, err)

	_, present := profile[NutrientFiberG]
	assert.False(t, present, "nutrients absent from both sources stay absent, never zero")
}

func TestReconcileNoNutritionData(t *testing.T) {
	r, err := NewReconciler(DefaultReconcilerConfig())
	require.NoError(t, err)

	_, err = r.Reconcile(nil, nil)
	assert.ErrorIs(t, err, ErrNoNutritionData)

	_, err = r.Reconcile([]NormalizedEntry{}, []NormalizedEntry{})
	assert.ErrorIs(t, err, ErrNoNutritionData)
}

func TestReconcileDeterministic(t *testing.T) {
	r, err := NewReconciler(DefaultReconcilerConfig())
	require.NoError(t, err)

	ocr := []NormalizedEntry{
		{Key: NutrientSodiumMg, Value: 610, Unit: UnitMilligram, Confidence: 0.8},
		{Key: NutrientFatG, Value: 11, Unit: UnitGram, Confidence: 0.75},
	}
	barcode := []NormalizedEntry{
		{Key: NutrientSodiumMg, Value: 600, Unit: UnitMilligram, Confidence: 0.9},
		{Key: NutrientSugarsG, Value: 22, Unit: UnitGram, Confidence: 0.9},
	}

	first, err := r.Reconcile(ocr, barcode)
	require.NoError(t, err)
	second, err := r.Reconcile(ocr, barcode)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
