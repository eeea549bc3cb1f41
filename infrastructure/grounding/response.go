package grounding

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/foodgenie/foodgenie/internal/domain"
)

// validate is the package-level validator for response payloads.
// validator.Validate is safe for concurrent use.
var validate = validator.New()

// groundingPayload is the wire shape providers are instructed to return.
type groundingPayload struct {
	Rationale    string   `json:"rationale" validate:"required,min=1"`
	Safety       string   `json:"safety" validate:"required,oneof=safe caution avoid"`
	Alternatives []string `json:"alternatives"`
}

// ParseResponse parses and validates a raw provider response into a
// GroundingResponse. It tolerates markdown code fences and surrounding prose
// around the JSON object. Any failure to produce a rationale and a valid
// safety classification wraps domain.ErrMalformedGroundingResponse.
func ParseResponse(raw string) (domain.GroundingResponse, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return domain.GroundingResponse{}, fmt.Errorf("%w: %w", domain.ErrMalformedGroundingResponse, err)
	}

	var payload groundingPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return domain.GroundingResponse{}, fmt.Errorf("%w: %w", domain.ErrMalformedGroundingResponse, err)
	}

	if err := validate.Struct(payload); err != nil {
		return domain.GroundingResponse{}, fmt.Errorf("%w: %w", domain.ErrMalformedGroundingResponse, err)
	}

	return domain.GroundingResponse{
		Rationale:    strings.TrimSpace(payload.Rationale),
		Safety:       domain.SafetyLevel(payload.Safety),
		Alternatives: payload.Alternatives,
	}, nil
}

// extractJSON locates the JSON object within a provider response.
// Models frequently wrap JSON in markdown fences or add prose around it, so
// the extractor strips fences first and then falls back to the outermost
// brace pair.
func extractJSON(response string) (string, error) {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		var body []string
		inFence := false
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				if inFence {
					break
				}
				inFence = true
				continue
			}
			if inFence {
				body = append(body, line)
			}
		}
		trimmed = strings.TrimSpace(strings.Join(body, "\n"))
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}

	return trimmed[start : end+1], nil
}
