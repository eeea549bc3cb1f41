package ocr

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"

	"github.com/foodgenie/foodgenie/internal/domain"
	"github.com/foodgenie/foodgenie/internal/ports"
)

// defaultOCRConfidence is attached when the Vision response carries no
// block confidences at all.
const defaultOCRConfidence = 0.5

// VisionExtractor implements ports.LabelExtractor using Google Cloud Vision
// document text detection. Credentials are resolved from the environment
// (GOOGLE_APPLICATION_CREDENTIALS or ambient service account).
type VisionExtractor struct {
	client *vision.ImageAnnotatorClient
	log    *zap.Logger
}

var _ ports.LabelExtractor = (*VisionExtractor)(nil)

// NewVisionExtractor creates a Vision-backed label extractor.
func NewVisionExtractor(ctx context.Context, log *zap.Logger) (*VisionExtractor, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &VisionExtractor{
		client: client,
		log:    log.Named("ocr"),
	}, nil
}

// Close releases the underlying Vision client.
func (v *VisionExtractor) Close() error { return v.client.Close() }

// ExtractLabel runs document text detection over the image and parses the
// recognized text into candidate nutrient tokens. An image with no
// recognizable nutrition text yields an empty extraction and no error.
func (v *VisionExtractor) ExtractLabel(ctx context.Context, image []byte) (domain.OCRExtraction, error) {
	if len(image) == 0 {
		return nil, nil
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate: %s", r0.Error.Message)
	}

	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return nil, nil
	}

	confidence := blockConfidence(fta)
	extraction := ParseLabelText(fta.Text, confidence)

	v.log.Debug("label extracted",
		zap.Int("tokens", len(extraction)),
		zap.Float64("confidence", confidence))

	return extraction, nil
}

// blockConfidence averages the positive block confidences across all pages,
// falling back to defaultOCRConfidence when none are reported.
func blockConfidence(fta *visionpb.TextAnnotation) float64 {
	var sum float64
	n := 0
	for _, page := range fta.Pages {
		if page == nil {
			continue
		}
		for _, block := range page.Blocks {
			if block == nil || block.Confidence <= 0 {
				continue
			}
			sum += float64(block.Confidence)
			n++
		}
	}
	if n == 0 {
		return defaultOCRConfidence
	}
	return sum / float64(n)
}
