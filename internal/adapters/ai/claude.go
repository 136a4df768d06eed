package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

// ClaudeProvider implements Generator on the Anthropic Messages API
type ClaudeProvider struct {
	client      *anthropic.Client
	model       string
	temperature float32
	maxTokens   int
}

// ClaudeConfig configures ClaudeProvider
type ClaudeConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	MaxRetries  int
}

// NewClaudeProvider creates new Claude provider. An empty key yields ErrNotConfigured on use.
func NewClaudeProvider(cfg ClaudeConfig) *ClaudeProvider {
	p := &ClaudeProvider{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	if p.maxTokens <= 0 {
		p.maxTokens = 1500
	}
	if cfg.APIKey == "" {
		return p
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	p.client = &client
	return p
}

func (c *ClaudeProvider) GetName() string {
	return "claude"
}

func (c *ClaudeProvider) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("claude: %w - please set ANTHROPIC_API_KEY", ErrNotConfigured)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.temperature))
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: prompt.System},
		}
	}

	startTime := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from claude")
	}

	logger.Debug("Claude response",
		zap.String("model", c.model),
		zap.Duration("latency", time.Since(startTime)),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)

	return text.String(), nil
}
