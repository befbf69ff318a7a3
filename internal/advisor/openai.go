// Package advisor generates the optional language-model summary attached to
// completed scans. Failures here never affect a job: callers substitute a
// placeholder and move on.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"ferret/internal/domain"
	"ferret/internal/logger"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("advisor disabled: no API key configured")

type Client struct {
	api     *openai.Client
	model   string
	enabled bool
	log     *logger.Logger
}

// New builds an advisory client. Without an API key the client is created
// disabled rather than erroring, so wiring stays unconditional.
func New(apiKey, model string, log *logger.Logger) *Client {
	c := &Client{model: model, log: log}
	if apiKey == "" {
		log.Infow("advisory summaries disabled: no API key")
		return c
	}
	c.api = openai.NewClient(apiKey)
	c.enabled = true
	return c
}

// Summarize asks the model for a short remediation-focused summary of the
// findings.
func (c *Client) Summarize(ctx context.Context, target string, findings []domain.NormalizedResult) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Security findings for %s:\n", target)
	if len(findings) == 0 {
		b.WriteString("none\n")
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "- [%s] %s: %s (host %s)\n",
			f.Meta(domain.MetaSeverity), f.Meta(domain.MetaFindingType),
			f.Meta(domain.MetaTitle), f.Meta(domain.MetaHost))
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 300,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a security analyst. Summarize scan findings for a non-expert owner of the scanned domain in at most four sentences, leading with the most urgent remediation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: b.String(),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
