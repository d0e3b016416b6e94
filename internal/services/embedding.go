package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/resume-matcher/internal/apperrors"
	"alfredoptarigan/resume-matcher/internal/resilience"
)

// maxEmbeddingInput caps preprocessed text length before a model call.
const maxEmbeddingInput = 8000

// EmbeddingResult carries a vector plus how it was produced. Fallback
// vectors score with reduced confidence downstream.
type EmbeddingResult struct {
	Vector   []float32 `json:"vector"`
	Fallback bool      `json:"fallback"`
}

// Quality is the embedding quality factor fed into confidence scoring.
func (r EmbeddingResult) Quality() float64 {
	if r.Fallback {
		return 0.5
	}
	return 1.0
}

type EmbeddingService interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error)
	Dimension() int
}

type embeddingService struct {
	model       EmbeddingModel
	cache       CacheService
	breaker     *resilience.CircuitBreaker
	retryPolicy resilience.RetryPolicy
	cacheTTL    time.Duration
	fallbackTTL time.Duration
	logger      *zap.Logger
}

type EmbeddingServiceOptions struct {
	CacheTTL    time.Duration
	FallbackTTL time.Duration
}

func NewEmbeddingService(model EmbeddingModel, cache CacheService, opts EmbeddingServiceOptions, logger *zap.Logger) EmbeddingService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.FallbackTTL <= 0 {
		opts.FallbackTTL = time.Hour
	}
	policy := resilience.DefaultRetryPolicy()
	policy.BaseDelay = time.Second

	return &embeddingService{
		model:       model,
		cache:       cache,
		breaker:     resilience.NewCircuitBreaker("embedding", 3, 60*time.Second),
		retryPolicy: policy,
		cacheTTL:    opts.CacheTTL,
		fallbackTTL: opts.FallbackTTL,
		logger:      logger,
	}
}

func (s *embeddingService) Dimension() int {
	return s.model.Dimension()
}

// preprocessText trims, collapses whitespace and truncates the input before
// hashing and embedding so equivalent texts share a cache entry.
func preprocessText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxEmbeddingInput {
		text = text[:maxEmbeddingInput]
	}
	return text
}

func (s *embeddingService) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	processed := preprocessText(text)
	if processed == "" {
		return EmbeddingResult{Vector: make([]float32, s.model.Dimension())}, nil
	}

	key := embeddingCacheKey(processed)
	var cached EmbeddingResult
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	vector, err := s.encodeWithResilience(ctx, processed)
	if err != nil {
		s.logger.Warn("embedding generation failed, using fallback vector",
			zap.Int("text_length", len(processed)), zap.Error(err))

		result := EmbeddingResult{
			Vector:   fallbackVector(processed, s.model.Dimension()),
			Fallback: true,
		}
		_ = s.cache.Set(ctx, key, result, s.fallbackTTL)
		return result, nil
	}

	result := EmbeddingResult{Vector: vector}
	_ = s.cache.Set(ctx, key, result, s.cacheTTL)
	return result, nil
}

func (s *embeddingService) encodeWithResilience(ctx context.Context, processed string) ([]float32, error) {
	var vector []float32
	err := resilience.Retry(ctx, s.retryPolicy, func(ctx context.Context) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			v, err := s.model.Encode(ctx, processed)
			if err != nil {
				return err
			}
			vector = v
			return nil
		})
	})
	return vector, err
}

// EmbedBatch resolves cached entries first and sends only the misses to the
// model, splicing results back in input order. A total model failure fills the
// misses with zero vectors rather than failing the whole call.
func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([]EmbeddingResult, len(texts))
	processed := make([]string, len(texts))
	var missIndexes []int
	var missTexts []string

	for i, text := range texts {
		processed[i] = preprocessText(text)
		if processed[i] == "" {
			results[i] = EmbeddingResult{Vector: make([]float32, s.model.Dimension())}
			continue
		}

		var cached EmbeddingResult
		if hit, _ := s.cache.Get(ctx, embeddingCacheKey(processed[i]), &cached); hit {
			results[i] = cached
			continue
		}
		missIndexes = append(missIndexes, i)
		missTexts = append(missTexts, processed[i])
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := s.encodeBatchWithResilience(ctx, missTexts)
	if err != nil {
		s.logger.Warn("batch embedding generation failed, filling misses with zero vectors",
			zap.Int("batch_size", len(missTexts)), zap.Error(err))

		// Zero vectors carry no signal, so they are never cached.
		for _, i := range missIndexes {
			results[i] = EmbeddingResult{
				Vector:   make([]float32, s.model.Dimension()),
				Fallback: true,
			}
		}
		return results, nil
	}

	for n, i := range missIndexes {
		result := EmbeddingResult{Vector: vectors[n]}
		results[i] = result
		_ = s.cache.Set(ctx, embeddingCacheKey(missTexts[n]), result, s.cacheTTL)
	}
	return results, nil
}

func (s *embeddingService) encodeBatchWithResilience(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := resilience.Retry(ctx, s.retryPolicy, func(ctx context.Context) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			v, err := s.model.EncodeBatch(ctx, texts)
			if err != nil {
				return err
			}
			if len(v) != len(texts) {
				return apperrors.New(apperrors.KindEmbeddingGeneration, "embedding count mismatch").
					With("expected", len(texts)).
					With("actual", len(v))
			}
			vectors = v
			return nil
		})
	})
	return vectors, err
}

// fallbackKeywords drive the heuristic feature vector used when the model
// is unavailable.
var fallbackKeywords = []string{"experience", "skill", "education", "project", "work", "manage", "develop"}

// fallbackVector builds a crude feature vector from text statistics so the
// pipeline can still produce a (low-confidence) score during outages.
func fallbackVector(text string, dimension int) []float32 {
	if dimension <= 0 {
		return nil
	}
	lower := strings.ToLower(text)

	features := make([]float32, 0, 4)
	features = append(features, float32(minFloat(float64(len(text))/1000.0, 1.0)))
	features = append(features, float32(minFloat(float64(len(strings.Fields(text)))/500.0, 1.0)))

	unique := make(map[rune]struct{})
	for _, r := range lower {
		unique[r] = struct{}{}
	}
	features = append(features, float32(minFloat(float64(len(unique))/26.0, 1.0)))

	var keywordHits int
	for _, keyword := range fallbackKeywords {
		if strings.Contains(lower, keyword) {
			keywordHits++
		}
	}
	features = append(features, float32(keywordHits)/float32(len(fallbackKeywords)))

	vector := make([]float32, dimension)
	copy(vector, features)
	return vector
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
