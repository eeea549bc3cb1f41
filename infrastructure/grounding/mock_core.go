package grounding

import (
	"context"
	"sync"
	"time"
)

// MockCoreModel provides a configurable mock implementation of CoreModel for
// testing. It allows precise control over response behavior, timing, and
// error conditions to facilitate middleware and client testing.
type MockCoreModel struct {
	mu sync.Mutex

	// Response configuration
	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N attempts, then succeeds.
	FailUntilAttempt int

	// Tracking
	CallCount  int
	LastPrompt string
	LastOpts   map[string]any
	Prompts    []string
}

// NewMockCoreModel creates a mock CoreModel with default successful behavior.
func NewMockCoreModel() *MockCoreModel {
	return &MockCoreModel{
		Response:  `{"rationale": "test rationale", "safety": "safe"}`,
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements the CoreModel interface with configurable behavior.
func (m *MockCoreModel) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.Prompts = append(m.Prompts, prompt)

	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	if m.FailUntilAttempt > 0 && m.CallCount <= m.FailUntilAttempt {
		if m.Error != nil {
			return "", 0, 0, m.Error
		}
		return "", 0, 0, &mockError{message: "simulated failure"}
	}

	if m.Error != nil {
		return "", 0, 0, m.Error
	}

	return m.Response, m.TokensIn, m.TokensOut, nil
}

// GetModel returns the configured model name.
func (m *MockCoreModel) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreModel) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of times DoRequest was called.
func (m *MockCoreModel) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// mockError provides a simple error type for testing.
type mockError struct {
	message string
}

func (e *mockError) Error() string { return e.message }
