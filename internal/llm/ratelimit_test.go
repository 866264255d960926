package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct{ calls int }

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	c.calls++
	return &CompletionResponse{Text: "ok"}, nil
}

func TestRateLimited_BlocksBeyondBurst(t *testing.T) {
	next := &countingProvider{}
	p := NewRateLimited(next, 1)

	_, err := p.CompleteText(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.CompleteText(ctx, CompletionRequest{})
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "counting", p.Name())
}

func TestRateLimited_Unlimited(t *testing.T) {
	next := &countingProvider{}
	p := NewRateLimited(next, 0)
	for i := 0; i < 5; i++ {
		_, err := p.CompleteText(context.Background(), CompletionRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, 5, next.calls)
}
