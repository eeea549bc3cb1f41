package ports

import (
	"context"

	"github.com/foodgenie/foodgenie/internal/domain"
)

// GroundingClient defines the interface for the retrieval-grounded reasoning
// collaborator that turns a fused profile and rule findings into a
// personalized rationale.
type GroundingClient interface {
	// Ground sends the structured request to the reasoning service and
	// returns its validated response.
	//
	// Implementations own the bounded retry policy: transient failures are
	// retried internally, and the request payload must be identical on
	// every attempt. After the retry budget is exhausted Ground returns an
	// error wrapping domain.ErrGroundingUnavailable; a response that cannot
	// be parsed into a rationale and safety classification returns an error
	// wrapping domain.ErrMalformedGroundingResponse. Callers fall back to
	// the rule-only rationale on either.
	Ground(ctx context.Context, req domain.GroundingRequest) (domain.GroundingResponse, error)
}
