package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
)

// Embedder turns text into vectors
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
	GetName() string
}

// EmbeddingRepository interface for storage implementations
// Embeddings are deterministic per model, so they are stored permanently
type EmbeddingRepository interface {
	Get(ctx context.Context, textHash string) ([]float32, bool)
	Set(ctx context.Context, textHash string, embedding []float32, model string, textLength int) error
}

// Client handles embedding generation with deduplication via repository
type Client struct {
	repository          EmbeddingRepository
	openaiClient        *openai.Client
	model               openai.EmbeddingModel
	maxAttempts         int
	deduplicationHits   int64
	deduplicationMisses int64
}

// Config for embedding client
type Config struct {
	OpenAIClient *openai.Client
	Repository   EmbeddingRepository   // Optional repository for deduplication
	Model        openai.EmbeddingModel // Default: text-embedding-3-small
	MaxAttempts  int                   // Default: 1 (no retry)
}

// NewClient creates new embedding client with optional deduplication
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = openai.SmallEmbedding3
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	if cfg.Repository != nil {
		logger.Info("embedding deduplication enabled", zap.String("model", string(model)))
	}

	return &Client{
		openaiClient: cfg.OpenAIClient,
		repository:   cfg.Repository,
		model:        model,
		maxAttempts:  attempts,
	}
}

func (c *Client) GetName() string {
	return string(c.model)
}

// Generate creates embedding for single text
func (c *Client) Generate(ctx context.Context, text string) ([]float32, error) {
	out, err := c.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("OpenAI returned no embedding data")
	}
	return out[0], nil
}

// generateWithRetry calls OpenAI API with exponential backoff between attempts
func (c *Client) generateWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s, 4s
			backoffDuration := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			logger.Debug("retrying OpenAI embedding request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Duration("backoff", backoffDuration),
			)

			select {
			case <-time.After(backoffDuration):
			case <-ctx.Done():
				return nil, fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}

		resp, err := c.openaiClient.CreateEmbeddings(
			ctx,
			openai.EmbeddingRequest{
				Model: c.model,
				Input: texts,
			},
		)

		if err == nil {
			embeddings := make([][]float32, len(resp.Data))
			for i, data := range resp.Data {
				embeddings[i] = data.Embedding
			}
			return embeddings, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}

		logger.Warn("retryable OpenAI error encountered",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, fmt.Errorf("max attempts (%d) exceeded: %w", c.maxAttempts, lastErr)
}

// isRetryableError checks if error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
	}

	errStr := err.Error()

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset") {
		return true
	}

	return false
}

// GenerateBatch creates embeddings for multiple texts (up to 2048 per request).
// Texts found in the repository are not sent to the API.
func (c *Client) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// OpenAI supports up to 2048 inputs per batch
	const maxBatchSize = 2048

	allEmbeddings := make([][]float32, len(texts))

	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		var uncachedIndices []int
		var uncachedTexts []string

		for j, text := range batch {
			if c.repository != nil {
				if existing, found := c.repository.Get(ctx, c.hashText(text)); found {
					atomic.AddInt64(&c.deduplicationHits, 1)
					allEmbeddings[i+j] = existing
					continue
				}
				atomic.AddInt64(&c.deduplicationMisses, 1)
			}
			uncachedIndices = append(uncachedIndices, i+j)
			uncachedTexts = append(uncachedTexts, text)
		}

		if len(uncachedTexts) == 0 {
			logger.Debug("batch embedding deduplication (all found in repository)",
				zap.Int("batch_size", len(batch)),
			)
			continue
		}

		if c.openaiClient == nil {
			return nil, fmt.Errorf("OpenAI embedding client not configured - please set OPENAI_API_KEY")
		}

		embeddings, err := c.generateWithRetry(ctx, uncachedTexts)
		if err != nil {
			return nil, fmt.Errorf("batch embedding API failed: %w", err)
		}

		if len(embeddings) != len(uncachedTexts) {
			return nil, fmt.Errorf("batch response size mismatch: expected %d, got %d", len(uncachedTexts), len(embeddings))
		}

		for j, embedding := range embeddings {
			idx := uncachedIndices[j]
			allEmbeddings[idx] = embedding

			if c.repository != nil {
				if err := c.repository.Set(ctx, c.hashText(uncachedTexts[j]), embedding, string(c.model), len(uncachedTexts[j])); err != nil {
					// Non-critical, continue
					logger.Warn("failed to store embedding in repository", zap.Error(err))
				}
			}
		}

		logger.Debug("batch embedding generation successful",
			zap.Int("batch_size", len(batch)),
			zap.Int("cached", len(batch)-len(uncachedTexts)),
			zap.Int("generated", len(uncachedTexts)),
		)
	}

	return allEmbeddings, nil
}

// hashText creates SHA256 hash of model and text for the repository key
func (c *Client) hashText(text string) string {
	hash := sha256.Sum256([]byte(string(c.model) + "\x00" + text))
	return hex.EncodeToString(hash[:])
}

// GetDeduplicationStats returns deduplication statistics
func (c *Client) GetDeduplicationStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.deduplicationHits), atomic.LoadInt64(&c.deduplicationMisses)
}

// LogDeduplicationStats logs current deduplication statistics
func (c *Client) LogDeduplicationStats() {
	if c.repository == nil {
		return
	}

	hits, misses := c.GetDeduplicationStats()
	total := hits + misses
	if total == 0 {
		return
	}

	logger.Info("embedding deduplication stats",
		zap.Int64("hits", hits),
		zap.Int64("misses", misses),
		zap.Float64("hit_rate_pct", float64(hits)/float64(total)*100),
	)
}
