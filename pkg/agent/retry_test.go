package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/pkg/agent/llmerrors"
	"atlas/pkg/logx"
)

func TestWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	inner := NewMockLLMClient([]CompletionResponse{
		{Content: "recovered"},
	}, []error{
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "connection reset"),
		nil,
	})
	client := WithRetry(inner, logx.NewLogger("test"))

	resp, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 2, inner.CallCount())
}

func TestWithRetryDoesNotRetryAuthErrors(t *testing.T) {
	authErr := llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad api key")
	inner := NewMockLLMClient(nil, []error{authErr, authErr})
	client := WithRetry(inner, logx.NewLogger("test"))

	_, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.Error(t, err)
	assert.Equal(t, 1, inner.CallCount())
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
}

func TestWithRetryGivesUpAfterBudget(t *testing.T) {
	// Unknown errors allow a single retry.
	plain := errors.New("something odd happened")
	inner := NewMockLLMClient(nil, []error{plain, plain, plain})
	client := WithRetry(inner, logx.NewLogger("test"))

	_, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.Error(t, err)
	assert.Equal(t, 2, inner.CallCount())
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	inner := NewMockLLMClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "429"),
	})
	client := WithRetry(inner, logx.NewLogger("test"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, NewCompletionRequest(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRetryPreservesModelName(t *testing.T) {
	client := WithRetry(NewMockLLMClient(nil, nil), logx.NewLogger("test"))
	assert.Equal(t, "mock-model", client.GetModelName())
}
