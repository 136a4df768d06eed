package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

// OpenAIProvider implements Generator with chat completions in JSON mode
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// OpenAIConfig configures OpenAIProvider
type OpenAIConfig struct {
	Client      *openai.Client
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewOpenAIProvider creates new OpenAI provider. A nil client yields ErrNotConfigured on use.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		client:      cfg.Client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (o *OpenAIProvider) GetName() string {
	return "openai"
}

func (o *OpenAIProvider) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if o.client == nil {
		return "", fmt.Errorf("openai: %w - please set OPENAI_API_KEY", ErrNotConfigured)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.User})

	startTime := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content

	logger.Debug("OpenAI response",
		zap.String("model", o.model),
		zap.Duration("latency", time.Since(startTime)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return content, nil
}
