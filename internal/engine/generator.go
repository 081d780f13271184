package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/bull/ragdex/internal/embedding"
	"github.com/bull/ragdex/internal/faults"
)

const (
	// systemPrompt is the fixed system instruction for every completion.
	systemPrompt = "You are a helpful assistant that answers questions based on provided context."

	// FallbackAnswer is returned when generation fails after retries.
	// This path is user-facing and must never surface an error.
	FallbackAnswer = "Sorry, I encountered an error while generating an answer."

	generationTemperature = 0.7
	generationMaxTokens   = 1000
)

// CompletionAPI is the raw completion call. OpenAICompleter implements it;
// tests substitute a fake.
type CompletionAPI interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAICompleter calls the chat completions API with the fixed system
// instruction and bounded temperature/length configuration.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter wraps an OpenAI client for the given chat model.
func NewOpenAICompleter(client *openai.Client, model string) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model}
}

// Complete issues one chat completion and returns the trimmed answer text.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:               openai.ChatModel(c.model),
		Temperature:         openai.Float(generationTemperature),
		MaxCompletionTokens: openai.Int(generationMaxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Generator wraps the completion call with retry and a safe fallback.
type Generator struct {
	api                 CompletionAPI
	logger              *slog.Logger
	newBackOff          func() backoff.BackOff
	newRateLimitBackOff func() backoff.BackOff
}

// NewGenerator creates a Generator over the given completion API.
func NewGenerator(api CompletionAPI, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		api:    api,
		logger: logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
		// Rate limits recover on the provider's clock, not ours: start
		// slower and keep trying longer than for generic transients.
		newRateLimitBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

// Generate produces an answer for the prompt. Transient and rate-limit
// failures are retried on their respective backoff schedules; on any
// terminal failure the fixed fallback string is returned instead of an
// error.
func (g *Generator) Generate(ctx context.Context, prompt string) string {
	transient := g.newBackOff()
	rateLimited := g.newRateLimitBackOff()

	for attempt := 1; ; attempt++ {
		answer, err := g.api.Complete(ctx, systemPrompt, prompt)
		if err == nil {
			return answer
		}

		var delay time.Duration
		kind := embedding.Classify(err)
		switch {
		case errors.Is(kind, faults.ErrRateLimited):
			delay = rateLimited.NextBackOff()
		case errors.Is(kind, faults.ErrTransient):
			delay = transient.NextBackOff()
		default:
			g.logger.Error("answer generation failed", "error", err)
			return FallbackAnswer
		}

		if delay == backoff.Stop {
			g.logger.Error("answer generation failed", "attempts", attempt, "error", err)
			return FallbackAnswer
		}

		g.logger.Warn("completion failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			g.logger.Error("answer generation canceled", "error", ctx.Err())
			return FallbackAnswer
		case <-timer.C:
		}
	}
}
