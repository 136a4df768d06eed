package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.AI.EmbedModel)
	assert.Len(t, cfg.News.Feeds, 3)
	assert.Equal(t, 8, cfg.News.Limit)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5, cfg.Evidence.K)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 1, cfg.AI.EmbedMaxAttempts)
	assert.Empty(t, cfg.Watch.Schedule)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.AI.HasAPIKey())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")
	t.Setenv("NEWS_FEEDS", "https://a.example/rss,https://b.example/rss")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("WATCHLIST", "AAPL,MSFT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1-mini", cfg.AI.Model)
	assert.Equal(t, []string{"https://a.example/rss", "https://b.example/rss"}, cfg.News.Feeds)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Watch.Tickers)
}

func TestValidate(t *testing.T) {
	t.Run("unknown cache backend", func(t *testing.T) {
		t.Setenv("CACHE_BACKEND", "memcached")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown ai provider", func(t *testing.T) {
		t.Setenv("AI_PROVIDER", "gemini")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive limit", func(t *testing.T) {
		t.Setenv("NEWS_LIMIT", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
