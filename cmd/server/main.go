// Command server runs the FoodGenie analysis API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/foodgenie/foodgenie/infrastructure/cache"
	"github.com/foodgenie/foodgenie/infrastructure/grounding"
	"github.com/foodgenie/foodgenie/infrastructure/metrics"
	"github.com/foodgenie/foodgenie/infrastructure/ocr"
	"github.com/foodgenie/foodgenie/infrastructure/openfoodfacts"
	"github.com/foodgenie/foodgenie/infrastructure/storage"
	"github.com/foodgenie/foodgenie/internal/application"
	"github.com/foodgenie/foodgenie/internal/domain"
	"github.com/foodgenie/foodgenie/internal/ports"
	"github.com/foodgenie/foodgenie/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, *configPath); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(logger *zap.Logger, configPath string) error {
	config, err := application.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewPrometheusMetrics()

	normalizerConfig := domain.DefaultNormalizerConfig()
	normalizerConfig.MaxNameDistance = config.Analysis.MaxNameDistance
	normalizer, err := domain.NewNormalizer(normalizerConfig)
	if err != nil {
		return err
	}

	reconciler, err := domain.NewReconciler(domain.ReconcilerConfig{
		AgreementThreshold: config.Analysis.AgreementThreshold,
		ConflictPenalty:    config.Analysis.ConflictPenalty,
	})
	if err != nil {
		return err
	}

	rulesConfig := domain.DefaultRulesConfig()
	rulesConfig.CautionBand = config.Analysis.CautionBand
	rulesConfig.LowConfidence = config.Analysis.LowConfidence
	rules, err := domain.NewRuleEvaluator(rulesConfig)
	if err != nil {
		return err
	}

	groundingClient, err := buildGroundingClient(config.Grounding, collector)
	if err != nil {
		return err
	}

	lookup := buildLookup(config.Redis, logger)

	extractor := buildExtractor(ctx, logger)
	if closer, ok := extractor.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	store, err := storage.Open(config.Database.Driver, config.Database.DSN, logger)
	if err != nil {
		return err
	}

	analyzer, err := application.NewAnalyzer(application.AnalyzerParams{
		Normalizer:        normalizer,
		Reconciler:        reconciler,
		Rules:             rules,
		Extractor:         extractor,
		Lookup:            lookup,
		Grounding:         groundingClient,
		Store:             store,
		Metrics:           collector,
		Logger:            logger,
		BarcodeConfidence: config.Analysis.BarcodeConfidence,
		SourceTimeout:     config.Analysis.SourceTimeout.Std(),
	})
	if err != nil {
		return err
	}

	api := server.New(analyzer, logger, server.Options{
		AllowOrigins: config.Server.AllowOrigins,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildGroundingClient assembles the provider with its middleware chain.
// Ordering matters: the rate limiter gates all attempts, retries sit above
// the per-attempt timeout, and metrics and tracing observe each attempt.
func buildGroundingClient(config application.GroundingConfig, collector ports.MetricsCollector) (*grounding.Client, error) {
	model := config.Model
	if model == "" {
		model = defaultModel(config.Provider)
	}

	perSecond := rate.Limit(float64(config.RatePerMinute) / 60.0)

	return grounding.NewClient(config.Provider, grounding.ClientConfig{
		APIKey:      config.APIKey,
		Model:       model,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
		Middleware: []grounding.Middleware{
			grounding.RateLimitMiddleware(perSecond, 1),
			grounding.RetryMiddleware(config.MaxRetries, config.BaseDelay.Std(), config.MaxDelay.Std()),
			grounding.TimeoutMiddleware(config.Timeout.Std()),
			grounding.MetricsMiddleware(collector),
			grounding.TracingMiddleware("foodgenie"),
		},
	})
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return grounding.OpenAIDefaultModel
	case "google":
		return grounding.GoogleDefaultModel
	default:
		return grounding.AnthropicDefaultModel
	}
}

// buildLookup wires the product database client, wrapped in the Redis cache
// when one is configured.
func buildLookup(config application.RedisConfig, logger *zap.Logger) ports.ProductLookup {
	var lookup ports.ProductLookup = openfoodfacts.NewClient(logger)

	if config.Addr == "" {
		return lookup
	}

	redisCache, err := cache.NewRedisCache(config.Addr, config.Password, config.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, product lookups will not be cached", zap.Error(err))
		return lookup
	}

	return openfoodfacts.NewCachedLookup(lookup, redisCache, config.ProductTTL.Std(), logger)
}

// buildExtractor wires the Vision OCR adapter. A missing credential setup
// degrades to barcode-only analysis rather than failing startup.
func buildExtractor(ctx context.Context, logger *zap.Logger) ports.LabelExtractor {
	extractor, err := ocr.NewVisionExtractor(ctx, logger)
	if err != nil {
		logger.Warn("vision unavailable, label OCR disabled", zap.Error(err))
		return nil
	}
	return extractor
}
