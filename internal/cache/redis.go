package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

const redisKeyPrefix = "thesis:report:"

// redisKV is satisfied by the redis adapter client
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Redis stores reports as JSON with the TTL enforced by redis expiry
type Redis struct {
	client redisKV
}

// NewRedis creates redis-backed cache
func NewRedis(client redisKV) *Redis {
	return &Redis{client: client}
}

// Get returns the cached report. Redis errors are logged and treated as a miss.
func (r *Redis) Get(ctx context.Context, ticker string) (*models.Report, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+ticker).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("redis cache read failed", zap.String("ticker", ticker), zap.Error(err))
		}
		return nil, false
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		logger.Warn("corrupt cached report", zap.String("ticker", ticker), zap.Error(err))
		return nil, false
	}
	return &report, true
}

// Put stores report with ttl
func (r *Redis) Put(ctx context.Context, ticker string, report *models.Report, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+ticker, data, ttl).Err()
}
