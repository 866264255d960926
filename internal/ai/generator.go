// Package ai drafts newsletter content and board guidance through an llm.Provider and
// turns the replies into validated values.
package ai

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/llm"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

const (
	DefaultMaxTokens = 4096
	temperature      = 0.7
)

type Generator struct {
	provider  llm.Provider
	validate  *validation.Validator
	maxTokens int
	log       *slog.Logger
}

func NewGenerator(provider llm.Provider, v *validation.Validator, maxTokens int, log *slog.Logger) *Generator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{provider: provider, validate: v, maxTokens: maxTokens, log: log}
}

func (g *Generator) complete(ctx context.Context, op, system, prompt string) (string, error) {
	resp, err := g.provider.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Prompt:       prompt,
		MaxTokens:    g.maxTokens,
		Temperature:  temperature,
	})
	if err != nil {
		return "", errors.Wrapf(err, "%s completion", op)
	}
	g.log.Debug("llm completion",
		slog.String("op", op),
		slog.String("provider", resp.ProviderName),
		slog.Int("prompt_tokens", resp.PromptTokens),
		slog.Int("output_tokens", resp.OutputTokens),
		slog.String("finish_reason", resp.FinishReason),
	)
	return resp.Text, nil
}

// GenerateEmail asks the model for a full newsletter draft. Nothing is persisted here.
func (g *Generator) GenerateEmail(ctx context.Context, src *model.CampaignSources) (*EmailDraft, error) {
	text, err := g.complete(ctx, "email draft", emailSystemPrompt, buildEmailPrompt(src))
	if err != nil {
		return nil, err
	}
	draft, err := ParseEmailResponse(g.validate, text)
	if err != nil {
		g.log.Warn("unusable email draft from model", slog.Int("campaign_id", src.Campaign.ID), slog.Any("error", err))
		return nil, err
	}
	return draft, nil
}
