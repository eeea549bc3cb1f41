// Package grounding provides the retrieval-grounded reasoning client behind
// ports.GroundingClient, with built-in support for retries, rate limiting,
// timeouts, metrics, and tracing.
//
// The package abstracts multiple model providers (OpenAI, Anthropic, Google)
// behind a common interface while adding operational cross-cutting concerns
// through a middleware pattern. This allows the analyzer to switch providers
// or add operational features without changing client code.
//
// Architecture:
//   - Core client implementation with middleware chain composition
//   - Provider implementations abstracted through the CoreModel interface
//   - Pluggable middleware for retries, rate limiting, timeouts, metrics, tracing
//   - Factory functions for simple provider creation
//
// Basic usage:
//
//	client, err := grounding.NewClient("openai", grounding.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	resp, err := client.Ground(ctx, req)
package grounding

import (
	"context"
	"fmt"

	"github.com/foodgenie/foodgenie/internal/domain"
	"github.com/foodgenie/foodgenie/internal/ports"
)

// DefaultMaxTokens bounds the response length requested from providers when
// the caller does not override it.
const DefaultMaxTokens = 1024

// CoreModel defines the minimal interface that reasoning providers must
// implement. It abstracts the raw prompt/response exchange so the middleware
// system can wrap any conforming implementation.
type CoreModel interface {
	// DoRequest sends a prompt to the provider and returns the response.
	// The opts parameter allows provider-specific configuration such as
	// temperature, max tokens, or a system prompt.
	// Returns the response text, input token count, output token count,
	// and any error.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// Middleware wraps a CoreModel implementation to add cross-cutting
// functionality. This pattern allows composition of features like retries,
// rate limiting, and metrics collection without modifying provider logic.
type Middleware func(CoreModel) CoreModel

// ClientConfig holds all configuration options for creating a grounding
// client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use for requests.
	// Each provider supports different model names.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	// Leave empty to use the provider's default endpoint.
	BaseURL string

	// Temperature controls response randomness. Verdicts favor low values;
	// nil uses the provider default.
	Temperature *float64

	// MaxTokens bounds the response length. Zero uses DefaultMaxTokens.
	MaxTokens int

	// Middleware allows custom middleware insertion.
	// These are applied in the order specified, first middleware outermost.
	Middleware []Middleware
}

// Client implements ports.GroundingClient. It owns prompt construction and
// response validation; the wrapped CoreModel chain owns transport concerns.
type Client struct {
	core        CoreModel
	temperature *float64
	maxTokens   int
}

var _ ports.GroundingClient = (*Client)(nil)

// NewClient creates a grounding client for the named provider. It assembles
// the middleware chain and validates configuration before returning a
// ready-to-use client.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return NewClientWithCore(core, config), nil
}

// NewClientWithCore wraps an existing CoreModel with the configured
// middleware chain. It is the seam used by tests to inject a mock core.
func NewClientWithCore(core CoreModel, config ClientConfig) *Client {
	// Apply middleware in reverse order so the first middleware is the
	// outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{
		core:        core,
		temperature: config.Temperature,
		maxTokens:   maxTokens,
	}
}

// Ground sends the analysis request to the reasoning provider and returns
// its validated response.
//
// The prompt is a pure function of the request, so every retry attempt made
// by the middleware chain sends an identical payload. Transport failures are
// surfaced as a ports.GroundingError carrying the model and operation,
// wrapping domain.ErrGroundingUnavailable plus the matching shared sentinel
// (timeout, rate limit, authentication, unavailable); a response that cannot
// be parsed into a rationale and safety classification is surfaced wrapping
// domain.ErrMalformedGroundingResponse.
func (c *Client) Ground(ctx context.Context, req domain.GroundingRequest) (domain.GroundingResponse, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return domain.GroundingResponse{}, fmt.Errorf("build prompt: %w", err)
	}

	opts := map[string]any{
		"system":     SystemPrompt(req),
		"max_tokens": c.maxTokens,
	}
	if c.temperature != nil {
		opts["temperature"] = *c.temperature
	}

	response, _, _, err := c.core.DoRequest(ctx, prompt, opts)
	if err != nil {
		return domain.GroundingResponse{}, ports.NewGroundingError(
			c.core.GetModel(),
			"ground",
			fmt.Errorf("%w: %w", domain.ErrGroundingUnavailable, portsSentinel(err)),
		)
	}

	parsed, err := ParseResponse(response)
	if err != nil {
		return domain.GroundingResponse{}, err
	}

	return parsed, nil
}

// GetModel returns the model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreModel implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreModel, error)

// Provider factory registry for extensibility.
// This allows registration of custom providers at runtime
// while keeping provider construction behind one code path.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a custom provider factory.
// This enables extension with additional providers without modifying the
// core package.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
