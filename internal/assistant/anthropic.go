package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const DefaultModel = "claude-sonnet-4-5-20250929"

const systemPrompt = `You are the assistant of a personal heart-health dashboard.
Answer questions about heart rate, ECG, blood pressure, blood oxygen,
respiratory rate and recovery in two or three plain sentences.
You are not a doctor: never diagnose, and tell the user to contact emergency
services when they describe chest pain, fainting or severe breathlessness.`

// AnthropicResponder answers through the Anthropic Messages API.
type AnthropicResponder struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

func NewAnthropicResponder(cfg Config, logger *zap.Logger) *AnthropicResponder {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnthropicResponder{client: &client, model: model, logger: logger}
}

func (a *AnthropicResponder) Reply(ctx context.Context, message string) (string, error) {
	if err := checkMessage(message); err != nil {
		return "", err
	}

	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 512,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(message)),
		},
	})
	if err != nil {
		a.logger.Warn("assistant call failed", zap.Error(err))
		return "", fmt.Errorf("assistant call failed: %w", err)
	}

	var reply strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return "", fmt.Errorf("assistant returned no text")
	}
	return reply.String(), nil
}
