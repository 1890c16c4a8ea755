package summarize

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/digestloop/core/internal/domain"
)

const maxAttempts = 3

// AnthropicClient implements Client against the Claude messages API, with
// a shared Pacer enforcing a minimum interval between request starts
// across the whole process, and an exponential-backoff retry of up to
// maxAttempts calls. Every failed call is retried, whatever the error;
// rate-limit and server errors are not told apart from other failures.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	pacer  *Pacer
}

func NewAnthropicClient(apiKey, model string, pacer *Pacer) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		pacer:  pacer,
	}
}

func (c *AnthropicClient) Summarize(ctx context.Context, req Request) (string, error) {
	prompt := BuildPrompt(req)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return "", err
		}

		text, err := c.send(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == maxAttempts-1 {
			break
		}
		delay := time.Duration(1<<uint(attempt))*15*time.Second + time.Duration(rand.Intn(5))*time.Second
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrLLMFail, lastErr)
}

func (c *AnthropicClient) send(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			return text.Text, nil
		}
	}
	return "", fmt.Errorf("response contained no text block")
}
