package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheService wraps redis with JSON marshalling and treats every cache
// failure as a miss. The pipeline must keep working when redis is down.
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ClearPattern(ctx context.Context, pattern string) (int, error)
}

type cacheService struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCacheService(client *redis.Client, logger *zap.Logger) CacheService {
	return &cacheService{client: client, logger: logger}
}

func (c *cacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		c.logger.Warn("cache get failed, treating as miss",
			zap.String("key", key), zap.Error(err))
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache entry is not valid JSON, treating as miss",
			zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (c *cacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed",
			zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (c *cacheService) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache delete failed",
			zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (c *cacheService) ClearPattern(ctx context.Context, pattern string) (int, error) {
	var deleted int
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("cache scan failed",
			zap.String("pattern", pattern), zap.Error(err))
		return deleted, nil
	}
	return deleted, nil
}

// HashContent produces a stable hex digest used in cache keys.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func embeddingCacheKey(preprocessed string) string {
	return "embedding:" + HashContent(preprocessed)
}

func explanationCacheKey(jobDesc, resumeContent string, score float64, matchedSkills []string) string {
	jobPart := jobDesc
	if len(jobPart) > 500 {
		jobPart = jobPart[:500]
	}
	resumePart := resumeContent
	if len(resumePart) > 500 {
		resumePart = resumePart[:500]
	}
	payload := fmt.Sprintf("%s|%s|%.2f|%s",
		jobPart, resumePart, score, strings.Join(matchedSkills, ","))
	return "explanation:" + HashContent(payload)
}

// matchResultsCacheKey identifies one job against one candidate set,
// independent of the order the resume ids arrived in.
func matchResultsCacheKey(jobID string, resumeIDs []string) string {
	sorted := make([]string, len(resumeIDs))
	copy(sorted, resumeIDs)
	sort.Strings(sorted)
	return fmt.Sprintf("match_results:%s:%s", jobID, HashContent(strings.Join(sorted, ",")))
}
