package grounding

import (
	"context"
	"time"
)

// timeoutModel implements per-attempt request timeouts.
// This ensures requests don't hang indefinitely and provides
// predictable response times.
type timeoutModel struct {
	next    CoreModel
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces request timeouts.
// Placed inside the retry middleware, the timeout applies per attempt while
// the caller's overall deadline still bounds the whole exchange.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreModel) CoreModel {
		return &timeoutModel{
			next:    next,
			timeout: timeout,
		}
	}
}

// DoRequest executes the request with a timeout context.
// If the request doesn't complete within the timeout duration,
// it returns a context deadline exceeded error.
func (t *timeoutModel) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, opts)
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutModel) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *timeoutModel) SetModel(m string) { t.next.SetModel(m) }
