package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foodgenie/foodgenie/internal/domain"
	"github.com/foodgenie/foodgenie/internal/ports"
)

type fakeExtractor struct {
	extraction domain.OCRExtraction
	err        error
	calls      int
}

func (f *fakeExtractor) ExtractLabel(ctx context.Context, image []byte) (domain.OCRExtraction, error) {
	f.calls++
	return f.extraction, f.err
}

type fakeProductLookup struct {
	record *domain.BarcodeRecord
	err    error
	calls  int
}

func (f *fakeProductLookup) Lookup(ctx context.Context, barcode string) (*domain.BarcodeRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

type fakeGrounding struct {
	response domain.GroundingResponse
	err      error
	lastReq  domain.GroundingRequest
	calls    int
}

func (f *fakeGrounding) Ground(ctx context.Context, req domain.GroundingRequest) (domain.GroundingResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return domain.GroundingResponse{}, f.err
	}
	return f.response, nil
}

type fakeStore struct {
	saveErr error
	saved   []domain.Verdict
	users   []string
}

func (f *fakeStore) Save(ctx context.Context, userID string, verdict domain.Verdict) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, verdict)
	f.users = append(f.users, userID)
	return nil
}

func (f *fakeStore) History(ctx context.Context, userID string, limit int) ([]domain.Verdict, error) {
	return f.saved, nil
}

func newTestAnalyzer(t *testing.T, params AnalyzerParams) *Analyzer {
	t.Helper()

	normalizer, err := domain.NewNormalizer(domain.DefaultNormalizerConfig())
	require.NoError(t, err)
	reconciler, err := domain.NewReconciler(domain.DefaultReconcilerConfig())
	require.NoError(t, err)
	rules, err := domain.NewRuleEvaluator(domain.DefaultRulesConfig())
	require.NoError(t, err)

	params.Normalizer = normalizer
	params.Reconciler = reconciler
	params.Rules = rules
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.BarcodeConfidence == 0 {
		params.BarcodeConfidence = 0.9
	}

	analyzer, err := NewAnalyzer(params)
	require.NoError(t, err)
	return analyzer
}

func crackerRecord() *domain.BarcodeRecord {
	return &domain.BarcodeRecord{
		Barcode:     "0123456789012",
		ProductName: "Salted Crackers",
		Brand:       "Acme",
		Ingredients: "wheat flour, palm oil, salt",
		Nutrients: []domain.RawMeasurement{
			{NutrientName: "sodium", Value: 0.6, Unit: "g"},
			{NutrientName: "energy-kcal", Value: 250, Unit: "kcal"},
		},
		FetchedAt: time.Now().UTC(),
	}
}

func crackerExtraction() domain.OCRExtraction {
	return domain.OCRExtraction{
		{NutrientName: "Sodium", RawValue: 610, RawUnit: "mg", Confidence: 0.8},
		{NutrientName: "Calories", RawValue: 250, RawUnit: "", Confidence: 0.8},
	}
}

func TestAnalyzeFullPipeline(t *testing.T) {
	extractor := &fakeExtractor{extraction: crackerExtraction()}
	lookup := &fakeProductLookup{record: crackerRecord()}
	grounding := &fakeGrounding{response: domain.GroundingResponse{
		Rationale:    "Sodium per serving exceeds what is advisable for hypertension.",
		Safety:       domain.SafetyCaution,
		Alternatives: []string{"unsalted crackers"},
	}}
	store := &fakeStore{}

	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Extractor: extractor,
		Lookup:    lookup,
		Grounding: grounding,
		Store:     store,
	})

	verdict, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		UserID:  "user-1",
		Image:   []byte("label"),
		Barcode: "0123456789012",
		User: domain.UserHealthProfile{
			ChronicConditions: []string{"hypertension"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, 1, grounding.calls)

	assert.NotEmpty(t, verdict.ID)
	assert.Equal(t, "Salted Crackers", verdict.ProductName)
	assert.True(t, verdict.GroundingApplied)
	assert.Equal(t, grounding.response.Rationale, verdict.Rationale)
	assert.Equal(t, []string{"unsalted crackers"}, verdict.SuggestedAlternatives)

	// 600mg sodium is well over the hypertension ceiling, so the rule level
	// is avoid and the milder grounding classification cannot relax it.
	assert.Equal(t, domain.SafetyAvoid, verdict.SafetyLevel)

	fused, ok := verdict.Profile[domain.NutrientSodiumMg]
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceBoth, fused.Provenance)
	assert.InDelta(t, 604.7, fused.Value, 0.1)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "user-1", store.users[0])
	assert.Equal(t, verdict.ID, store.saved[0].ID)

	assert.True(t, grounding.lastReq.BarcodeUsed)
	assert.Equal(t, "Acme", grounding.lastReq.Brand)
	assert.Equal(t, "wheat flour, palm oil, salt", grounding.lastReq.Ingredients)
}

func TestAnalyzeGroundingFailureFallsBack(t *testing.T) {
	grounding := &fakeGrounding{err: domain.ErrGroundingUnavailable}
	store := &fakeStore{}

	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Lookup:    &fakeProductLookup{record: crackerRecord()},
		Grounding: grounding,
		Store:     store,
	})

	verdict, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		UserID:  "user-1",
		Barcode: "0123456789012",
		User:    domain.UserHealthProfile{ChronicConditions: []string{"hypertension"}},
	})
	require.NoError(t, err)

	assert.False(t, verdict.GroundingApplied)
	assert.Equal(t, domain.SafetyAvoid, verdict.SafetyLevel)
	assert.Contains(t, verdict.Rationale, "conflicts with your health profile")
	assert.Contains(t, verdict.Rationale, "DANGER:")
	assert.Empty(t, verdict.SuggestedAlternatives)
	assert.Len(t, store.saved, 1, "fallback verdicts are still persisted")
}

func TestAnalyzeGroundingCannotRelaxRuleLevel(t *testing.T) {
	grounding := &fakeGrounding{response: domain.GroundingResponse{
		Rationale: "Looks fine overall.",
		Safety:    domain.SafetySafe,
	}}

	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Lookup:    &fakeProductLookup{record: crackerRecord()},
		Grounding: grounding,
	})

	verdict, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		Barcode: "0123456789012",
		User:    domain.UserHealthProfile{ChronicConditions: []string{"hypertension"}},
	})
	require.NoError(t, err)

	assert.True(t, verdict.GroundingApplied)
	assert.Equal(t, domain.SafetyAvoid, verdict.SafetyLevel)
}

func TestAnalyzeGroundingCanEscalate(t *testing.T) {
	grounding := &fakeGrounding{response: domain.GroundingResponse{
		Rationale: "The ingredient list suggests hidden sodium sources.",
		Safety:    domain.SafetyCaution,
	}}

	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Lookup:    &fakeProductLookup{record: crackerRecord()},
		Grounding: grounding,
	})

	// No conditions or allergies, so the rule level is safe.
	verdict, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		Barcode: "0123456789012",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SafetyCaution, verdict.SafetyLevel)
}

func TestAnalyzeNoInputs(t *testing.T) {
	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Lookup:    &fakeProductLookup{record: crackerRecord()},
		Grounding: &fakeGrounding{},
	})

	_, err := analyzer.Analyze(context.Background(), AnalyzeRequest{UserID: "user-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoNutritionData))
}

func TestAnalyzeAllSourcesEmpty(t *testing.T) {
	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Extractor: &fakeExtractor{extraction: nil},
		Lookup:    &fakeProductLookup{err: &ports.LookupError{Barcode: "0", Err: ports.ErrProductNotFound}},
		Grounding: &fakeGrounding{},
	})

	_, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		Image:   []byte("label"),
		Barcode: "0",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoNutritionData))
}

func TestAnalyzeOCROnlyWhenProductNotFound(t *testing.T) {
	grounding := &fakeGrounding{response: domain.GroundingResponse{
		Rationale: "Based on the label readings alone, this looks acceptable.",
		Safety:    domain.SafetySafe,
	}}

	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Extractor: &fakeExtractor{extraction: crackerExtraction()},
		Lookup:    &fakeProductLookup{err: &ports.LookupError{Barcode: "0", Err: ports.ErrProductNotFound}},
		Grounding: grounding,
	})

	verdict, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		Image:   []byte("label"),
		Barcode: "0",
	})
	require.NoError(t, err)

	assert.Empty(t, verdict.ProductName)
	assert.False(t, grounding.lastReq.BarcodeUsed)

	fused, ok := verdict.Profile[domain.NutrientSodiumMg]
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceOCR, fused.Provenance)
}

func TestAnalyzeSourceFailureDegrades(t *testing.T) {
	grounding := &fakeGrounding{response: domain.GroundingResponse{
		Rationale: "ok", Safety: domain.SafetySafe,
	}}

	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Extractor: &fakeExtractor{err: errors.New("vision unavailable")},
		Lookup:    &fakeProductLookup{record: crackerRecord()},
		Grounding: grounding,
	})

	verdict, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		Image:   []byte("label"),
		Barcode: "0123456789012",
	})
	require.NoError(t, err)

	fused, ok := verdict.Profile[domain.NutrientSodiumMg]
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceBarcode, fused.Provenance)
}

func TestAnalyzeSaveFailureDoesNotFailRequest(t *testing.T) {
	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Lookup:    &fakeProductLookup{record: crackerRecord()},
		Grounding: &fakeGrounding{response: domain.GroundingResponse{Rationale: "ok", Safety: domain.SafetySafe}},
		Store:     &fakeStore{saveErr: errors.New("database down")},
	})

	_, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		UserID:  "user-1",
		Barcode: "0123456789012",
	})
	require.NoError(t, err)
}

func TestAnalyzeAnonymousSkipsPersistence(t *testing.T) {
	store := &fakeStore{}
	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Lookup:    &fakeProductLookup{record: crackerRecord()},
		Grounding: &fakeGrounding{response: domain.GroundingResponse{Rationale: "ok", Safety: domain.SafetySafe}},
		Store:     store,
	})

	_, err := analyzer.Analyze(context.Background(), AnalyzeRequest{
		Barcode: "0123456789012",
	})
	require.NoError(t, err)
	assert.Empty(t, store.saved)
}

func TestAnalyzeExpiredDeadline(t *testing.T) {
	analyzer := newTestAnalyzer(t, AnalyzerParams{
		Lookup:    &fakeProductLookup{record: crackerRecord()},
		Grounding: &fakeGrounding{},
	})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := analyzer.Analyze(ctx, AnalyzeRequest{Barcode: "0123456789012"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRequestDeadlineExceeded))
}

func TestNewAnalyzerValidation(t *testing.T) {
	normalizer, err := domain.NewNormalizer(domain.DefaultNormalizerConfig())
	require.NoError(t, err)
	reconciler, err := domain.NewReconciler(domain.DefaultReconcilerConfig())
	require.NoError(t, err)
	rules, err := domain.NewRuleEvaluator(domain.DefaultRulesConfig())
	require.NoError(t, err)

	base := AnalyzerParams{
		Normalizer:        normalizer,
		Reconciler:        reconciler,
		Rules:             rules,
		Lookup:            &fakeProductLookup{},
		Grounding:         &fakeGrounding{},
		Logger:            zap.NewNop(),
		BarcodeConfidence: 0.9,
	}

	tests := []struct {
		name   string
		mutate func(*AnalyzerParams)
	}{
		{name: "missing normalizer", mutate: func(p *AnalyzerParams) { p.Normalizer = nil }},
		{name: "missing reconciler", mutate: func(p *AnalyzerParams) { p.Reconciler = nil }},
		{name: "missing rules", mutate: func(p *AnalyzerParams) { p.Rules = nil }},
		{name: "missing grounding", mutate: func(p *AnalyzerParams) { p.Grounding = nil }},
		{name: "no extraction sources", mutate: func(p *AnalyzerParams) { p.Lookup = nil }},
		{name: "bad barcode confidence", mutate: func(p *AnalyzerParams) { p.BarcodeConfidence = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := base
			tt.mutate(&params)
			_, err := NewAnalyzer(params)
			assert.Error(t, err)
		})
	}
}
