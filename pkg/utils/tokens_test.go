package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	assert.Zero(t, tc.CountTokens(""))
	assert.Greater(t, tc.CountTokens("why does the backend restart?"), 0)
	assert.Greater(t, tc.CountTokens(strings.Repeat("word ", 100)), tc.CountTokens("word"))
}

func TestCountTokensFallbackWithoutCodec(t *testing.T) {
	tc := &TokenCounter{}
	assert.Equal(t, 5, tc.CountTokens(strings.Repeat("a", 20)))
}

func TestTruncateToTokenLimit(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	short := "fits easily"
	assert.Equal(t, short, tc.TruncateToTokenLimit(short, 100))

	long := strings.Repeat("incident report line ", 500)
	truncated := tc.TruncateToTokenLimit(long, 50)
	assert.True(t, strings.HasSuffix(truncated, "..."))
	assert.LessOrEqual(t, tc.CountTokens(truncated), 50)
	assert.Less(t, len(truncated), len(long))
}
