package grounding

import (
	"encoding/json"
	"fmt"

	"github.com/foodgenie/foodgenie/internal/domain"
)

// SystemPrompt returns the instruction block sent with every grounding
// request. It fixes the assistant persona, the grounding sources, and the
// strict JSON output contract, and carries a data-quality note reflecting
// whether the profile is backed by a database record or by label OCR alone.
func SystemPrompt(req domain.GroundingRequest) string {
	quality := "The nutrition data below is backed by a product database record and is considered reliable."
	if !req.BarcodeUsed {
		quality = "The nutrition data below was extracted from a label photograph via OCR and may contain reading errors; qualify your analysis accordingly."
	}

	return `You are an expert nutritionist assistant. Base every claim on FDA nutrition labeling rules and USDA dietary guidelines; do not invent nutrition facts beyond the data provided. ` +
		quality +
		` Evaluate whether this product is suitable for the user given their health profile, paying particular attention to the rule findings already computed. ` +
		`Respond with a single JSON object and nothing else, using exactly this shape: ` +
		`{"rationale": "<2-4 sentence explanation personalized to the user>", "safety": "safe"|"caution"|"avoid", "alternatives": ["<optional healthier alternatives>"]}`
}

// BuildPrompt renders the structured analysis request as the user prompt.
// The output is a pure function of the request: map keys are serialized in
// sorted order, so every retry attempt sends an identical payload.
func BuildPrompt(req domain.GroundingRequest) (string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal grounding request: %w", err)
	}

	return "Analyze the following product for this user.\n\n" + string(payload), nil
}
