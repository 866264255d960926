// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/unclebandit/pta-newsletter/internal/llm"
)

// Provider replays Replies in order, repeating the last one. Err, when set, is returned
// instead.
type Provider struct {
	mu       sync.Mutex
	Replies  []string
	Err      error
	Requests []llm.CompletionRequest
	// Block, when non-nil, is waited on before replying.
	Block chan struct{}
}

func New(replies ...string) *Provider {
	return &Provider{Replies: replies}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.Block != nil {
		select {
		case <-p.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Replies) == 0 {
		return &llm.CompletionResponse{Text: "", ProviderName: p.Name()}, nil
	}
	text := p.Replies[0]
	if len(p.Replies) > 1 {
		p.Replies = p.Replies[1:]
	}
	return &llm.CompletionResponse{Text: text, ProviderName: p.Name()}, nil
}

// Calls returns how many completions were requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

var _ llm.Provider = (*Provider)(nil)
