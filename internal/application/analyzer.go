package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foodgenie/foodgenie/internal/domain"
	"github.com/foodgenie/foodgenie/internal/ports"
)

// AnalyzeRequest carries one analysis request through the engine. At least
// one of Image or Barcode must be present.
type AnalyzeRequest struct {
	// UserID identifies the requesting user for history persistence. An
	// empty ID analyzes anonymously and skips persistence.
	UserID string

	// Image holds the label photograph bytes, when captured.
	Image []byte

	// Barcode is the client-decoded EAN/UPC, when scanned.
	Barcode string

	// User is the caller-owned health profile to evaluate against.
	User domain.UserHealthProfile
}

// AnalyzerParams bundles the collaborators and tunables of the analyzer.
type AnalyzerParams struct {
	Normalizer *domain.Normalizer
	Reconciler *domain.Reconciler
	Rules      *domain.RuleEvaluator
	Extractor  ports.LabelExtractor
	Lookup     ports.ProductLookup
	Grounding  ports.GroundingClient
	Store      ports.VerdictStore
	Metrics    ports.MetricsCollector
	Logger     *zap.Logger

	// BarcodeConfidence is the trust assigned to product database readings.
	BarcodeConfidence float64

	// SourceTimeout bounds each extraction source independently.
	SourceTimeout time.Duration
}

// Analyzer orchestrates one analysis request end to end: concurrent source
// gathering, normalization, reconciliation, rule evaluation, grounded
// rationale generation with rule-only fallback, and best-effort persistence.
type Analyzer struct {
	normalizer *domain.Normalizer
	reconciler *domain.Reconciler
	rules      *domain.RuleEvaluator
	extractor  ports.LabelExtractor
	lookup     ports.ProductLookup
	grounding  ports.GroundingClient
	store      ports.VerdictStore
	metrics    ports.MetricsCollector
	log        *zap.Logger

	barcodeConfidence float64
	sourceTimeout     time.Duration
}

// NewAnalyzer validates the required collaborators and returns the analyzer.
func NewAnalyzer(params AnalyzerParams) (*Analyzer, error) {
	switch {
	case params.Normalizer == nil:
		return nil, errors.New("analyzer requires a normalizer")
	case params.Reconciler == nil:
		return nil, errors.New("analyzer requires a reconciler")
	case params.Rules == nil:
		return nil, errors.New("analyzer requires a rule evaluator")
	case params.Grounding == nil:
		return nil, errors.New("analyzer requires a grounding client")
	case params.Extractor == nil && params.Lookup == nil:
		return nil, errors.New("analyzer requires at least one extraction source")
	case params.Logger == nil:
		return nil, errors.New("analyzer requires a logger")
	}

	if params.BarcodeConfidence <= 0 || params.BarcodeConfidence > 1 {
		return nil, fmt.Errorf("barcode confidence %v outside (0,1]", params.BarcodeConfidence)
	}
	if params.SourceTimeout <= 0 {
		params.SourceTimeout = 10 * time.Second
	}

	return &Analyzer{
		normalizer:        params.Normalizer,
		reconciler:        params.Reconciler,
		rules:             params.Rules,
		extractor:         params.Extractor,
		lookup:            params.Lookup,
		grounding:         params.Grounding,
		store:             params.Store,
		metrics:           params.Metrics,
		log:               params.Logger.Named("analyzer"),
		barcodeConfidence: params.BarcodeConfidence,
		sourceTimeout:     params.SourceTimeout,
	}, nil
}

// Analyze runs one request through the full pipeline and returns the
// verdict. A request where neither source yields any nutrition data fails
// with domain.ErrNoNutritionData; an exhausted request deadline fails with
// domain.ErrRequestDeadlineExceeded. Grounding failures never fail the
// request: the verdict falls back to the rule-only rationale.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (domain.Verdict, error) {
	start := time.Now()

	ctx, span := otel.Tracer("analyzer").Start(ctx, "analysis.request")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("analysis.has_image", len(req.Image) > 0),
		attribute.Bool("analysis.has_barcode", req.Barcode != ""),
	)

	if len(req.Image) == 0 && req.Barcode == "" {
		return domain.Verdict{}, fmt.Errorf("%w: no image or barcode supplied", domain.ErrNoNutritionData)
	}

	extraction, record := a.gatherSources(ctx, req)
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrRequestDeadlineExceeded, err)
	}

	ocrEntries, dropped := a.normalizer.NormalizeOCR(extraction)
	a.logDropped("ocr", dropped)

	var barcodeEntries []domain.NormalizedEntry
	if record != nil {
		barcodeEntries, dropped = a.normalizer.NormalizeMeasurements(record.Nutrients, a.barcodeConfidence)
		a.logDropped("barcode", dropped)
	}

	profile, err := a.reconciler.Reconcile(ocrEntries, barcodeEntries)
	if err != nil {
		a.recordCounter("analysis_failures_total", map[string]string{"status": "no_data"})
		return domain.Verdict{}, err
	}

	ingredients := ""
	productName := ""
	if record != nil {
		ingredients = record.Ingredients
		productName = record.ProductName
	}

	flags := a.rules.Evaluate(profile, ingredients, req.User)
	ruleLevel := domain.SafetyFromSeverity(domain.MaxSeverity(flags))

	verdict := domain.Verdict{
		ID:          uuid.NewString(),
		ProductName: productName,
		SafetyLevel: ruleLevel,
		Flags:       flags,
		Profile:     profile,
		CreatedAt:   time.Now().UTC(),
	}

	groundingReq := domain.GroundingRequest{
		Profile:     profile,
		Flags:       flags,
		User:        req.User,
		ProductName: productName,
		BarcodeUsed: record != nil,
	}
	if record != nil {
		groundingReq.Brand = record.Brand
		groundingReq.Ingredients = record.Ingredients
		groundingReq.Categories = record.Categories
	}

	resp, err := a.grounding.Ground(ctx, groundingReq)
	switch {
	case err == nil:
		verdict.Rationale = resp.Rationale
		verdict.SafetyLevel = ruleLevel.Stricter(resp.Safety)
		verdict.SuggestedAlternatives = resp.Alternatives
		verdict.GroundingApplied = true
	case ctx.Err() != nil:
		return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrRequestDeadlineExceeded, ctx.Err())
	default:
		a.log.Warn("grounding failed, using rule-only rationale",
			zap.String("safety_level", string(ruleLevel)),
			zap.Error(err))
		a.recordCounter("grounding_fallbacks_total", nil)
		verdict.Rationale = domain.FallbackRationale(ruleLevel, flags)
	}

	a.persist(ctx, req.UserID, verdict)

	span.SetAttributes(
		attribute.String("analysis.safety_level", string(verdict.SafetyLevel)),
		attribute.Bool("analysis.grounded", verdict.GroundingApplied),
		attribute.Int("analysis.flags", len(verdict.Flags)),
	)

	if a.metrics != nil {
		a.metrics.RecordLatency("analyze", time.Since(start), nil)
		a.metrics.RecordCounter("analysis_verdicts_total", 1, map[string]string{
			"safety_level": string(verdict.SafetyLevel),
			"grounded":     strconv.FormatBool(verdict.GroundingApplied),
		})
	}

	return verdict, nil
}

// History returns the user's most recent verdicts, newest first.
func (a *Analyzer) History(ctx context.Context, userID string, limit int) ([]domain.Verdict, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.History(ctx, userID, limit)
}

// gatherSources runs OCR extraction and the product lookup concurrently,
// each under its own timeout. Source failures degrade to an absent source
// rather than failing the request.
func (a *Analyzer) gatherSources(ctx context.Context, req AnalyzeRequest) (domain.OCRExtraction, *domain.BarcodeRecord) {
	var (
		extraction domain.OCRExtraction
		record     *domain.BarcodeRecord
	)

	ctx, span := otel.Tracer("analyzer").Start(ctx, "analysis.gather_sources")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)

	if len(req.Image) > 0 && a.extractor != nil {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, a.sourceTimeout)
			defer cancel()

			result, err := a.extractor.ExtractLabel(sctx, req.Image)
			if err != nil {
				a.log.Warn("label extraction failed", zap.Error(err))
				a.recordCounter("source_failures_total", map[string]string{"status": "ocr"})
				return nil
			}
			extraction = result
			return nil
		})
	}

	if req.Barcode != "" && a.lookup != nil {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, a.sourceTimeout)
			defer cancel()

			result, err := a.lookup.Lookup(sctx, req.Barcode)
			switch {
			case err == nil:
				record = result
			case errors.Is(err, ports.ErrProductNotFound):
				a.log.Info("barcode not in product database",
					zap.String("barcode", req.Barcode))
			default:
				a.log.Warn("product lookup failed",
					zap.String("barcode", req.Barcode),
					zap.Error(err))
				a.recordCounter("source_failures_total", map[string]string{"status": "lookup"})
			}
			return nil
		})
	}

	// Source errors are swallowed above, so Wait only synchronizes.
	_ = g.Wait()

	return extraction, record
}

// persist saves the verdict without letting storage failures or the
// request's remaining deadline affect the response.
func (a *Analyzer) persist(ctx context.Context, userID string, verdict domain.Verdict) {
	if a.store == nil || userID == "" {
		return
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := a.store.Save(sctx, userID, verdict); err != nil {
		a.log.Warn("verdict persistence failed",
			zap.String("user_id", userID),
			zap.String("verdict_id", verdict.ID),
			zap.Error(err))
		a.recordCounter("verdict_save_failures_total", nil)
	}
}

func (a *Analyzer) logDropped(source string, dropped []error) {
	for _, err := range dropped {
		a.log.Debug("dropped nutrient token",
			zap.String("source", source),
			zap.Error(err))
	}
}

func (a *Analyzer) recordCounter(metric string, labels map[string]string) {
	if a.metrics != nil {
		a.metrics.RecordCounter(metric, 1, labels)
	}
}
