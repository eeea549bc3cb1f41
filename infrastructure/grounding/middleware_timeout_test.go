package grounding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutMiddlewareWithinBudget(t *testing.T) {
	mock := NewMockCoreModel()
	mock.ResponseDelay = 5 * time.Millisecond

	wrapped := TimeoutMiddleware(200 * time.Millisecond)(mock)

	response, _, _, err := wrapped.DoRequest(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, mock.Response, response)
}

func TestTimeoutMiddlewareExceeded(t *testing.T) {
	mock := NewMockCoreModel()
	mock.ResponseDelay = 200 * time.Millisecond

	wrapped := TimeoutMiddleware(10 * time.Millisecond)(mock)

	_, _, _, err := wrapped.DoRequest(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTimeoutMiddlewarePreservesTighterCallerDeadline(t *testing.T) {
	mock := NewMockCoreModel()
	mock.ResponseDelay = 200 * time.Millisecond

	wrapped := TimeoutMiddleware(time.Second)(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, _, err := wrapped.DoRequest(ctx, "prompt", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTimeoutMiddlewareDelegatesModel(t *testing.T) {
	mock := NewMockCoreModel()
	wrapped := TimeoutMiddleware(time.Second)(mock)

	assert.Equal(t, "test-model", wrapped.GetModel())
	wrapped.SetModel("other-model")
	assert.Equal(t, "other-model", wrapped.GetModel())
}
