package llm

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RateLimited caps how often the wrapped provider is called. Callers block until a token is
// available or their context ends.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

func NewRateLimited(next Provider, perMinute int) *RateLimited {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (p *RateLimited) Name() string {
	return p.next.Name()
}

func (p *RateLimited) CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for llm rate limit")
	}
	return p.next.CompleteText(ctx, req)
}
