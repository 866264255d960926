// Package llm is the boundary to hosted language models. Callers depend on Provider only.
package llm

import (
	"context"
	"fmt"
)

type CompletionRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	Model        string  `json:"model,omitempty"`
}

type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// Provider produces a single text completion.
type Provider interface {
	Name() string
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// APIError is returned when the upstream model API answers with a non-2xx status or an
// empty completion.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Body)
}
