package services

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ScalingMethod selects how a raw cosine value in [-1, 1] is mapped to a
// 0-100 percentage.
type ScalingMethod string

const (
	ScalingLinear      ScalingMethod = "linear"
	ScalingSigmoid     ScalingMethod = "sigmoid"
	ScalingExponential ScalingMethod = "exponential"
)

// SimilarityScore carries the raw cosine value alongside its scaled form.
type SimilarityScore struct {
	Raw        float64 `json:"raw"`
	Percentage float64 `json:"percentage"`
	Confidence float64 `json:"confidence"`
}

// SimilarityStatistics summarizes a batch of similarity scores.
type SimilarityStatistics struct {
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"std_dev"`
	Above90 int     `json:"above_90"`
	Above70 int     `json:"above_70"`
	Above50 int     `json:"above_50"`
}

// RankBy selects the field Rank orders on.
type RankBy string

const (
	RankByPercentage RankBy = "percentage"
	RankByRaw        RankBy = "raw"
	RankByConfidence RankBy = "confidence"
)

type SimilarityService interface {
	Cosine(a, b []float32) float64
	ToPercentage(raw float64, method ScalingMethod) float64
	Confidence(raw, quality float64) float64
	Score(a, b []float32, quality float64) SimilarityScore
	BatchScore(ctx context.Context, query []float32, candidates [][]float32, quality float64) []SimilarityScore
	Filter(scores []SimilarityScore, minPercentage float64) []SimilarityScore
	Rank(scores []SimilarityScore, by RankBy) []SimilarityScore
	Statistics(scores []SimilarityScore) SimilarityStatistics
}

type similarityService struct {
	method      ScalingMethod
	concurrency int64
	logger      *zap.Logger
}

func NewSimilarityService(method ScalingMethod, concurrency int, logger *zap.Logger) SimilarityService {
	if method == "" {
		method = ScalingSigmoid
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &similarityService{
		method:      method,
		concurrency: int64(concurrency),
		logger:      logger,
	}
}

// Cosine returns the cosine similarity of two vectors. Degenerate inputs
// (nil, empty, mismatched length, zero magnitude) score 0 rather than
// erroring so a single bad vector cannot fail a whole batch.
func (s *similarityService) Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func (s *similarityService) ToPercentage(raw float64, method ScalingMethod) float64 {
	var pct float64
	switch method {
	case ScalingLinear:
		pct = (raw + 1) * 50
	case ScalingExponential:
		if raw > 0 {
			pct = (math.Exp(raw) - 1) / (math.E - 1) * 100
		} else {
			pct = 0
		}
	default: // sigmoid
		pct = 100 / (1 + math.Exp(-raw*5))
	}
	return clamp(pct, 0, 100)
}

// Confidence estimates how trustworthy a similarity value is given the
// quality of the underlying embeddings (1.0 for model vectors, lower for
// fallback vectors).
func (s *similarityService) Confidence(raw, quality float64) float64 {
	strength := math.Abs(raw) * quality
	return 1 / (1 + math.Exp(-5*(strength-0.5)))
}

func (s *similarityService) Score(a, b []float32, quality float64) SimilarityScore {
	raw := s.Cosine(a, b)
	return SimilarityScore{
		Raw:        raw,
		Percentage: s.ToPercentage(raw, s.method),
		Confidence: s.Confidence(raw, quality),
	}
}

// BatchScore scores one query vector against many candidates with bounded
// parallelism, preserving candidate order in the result.
func (s *similarityService) BatchScore(ctx context.Context, query []float32, candidates [][]float32, quality float64) []SimilarityScore {
	scores := make([]SimilarityScore, len(candidates))
	sem := semaphore.NewWeighted(s.concurrency)
	g, ctx := errgroup.WithContext(ctx)

	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			scores[i] = s.Score(query, candidate, quality)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("batch scoring interrupted", zap.Error(err))
	}
	return scores
}

// Filter keeps the scores at or above the percentage threshold, preserving
// their order.
func (s *similarityService) Filter(scores []SimilarityScore, minPercentage float64) []SimilarityScore {
	kept := make([]SimilarityScore, 0, len(scores))
	for _, score := range scores {
		if score.Percentage >= minPercentage {
			kept = append(kept, score)
		}
	}
	return kept
}

// Rank returns a copy of the scores sorted descending on the chosen field.
func (s *similarityService) Rank(scores []SimilarityScore, by RankBy) []SimilarityScore {
	ranked := make([]SimilarityScore, len(scores))
	copy(ranked, scores)

	key := func(sc SimilarityScore) float64 {
		switch by {
		case RankByRaw:
			return sc.Raw
		case RankByConfidence:
			return sc.Confidence
		default:
			return sc.Percentage
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return key(ranked[i]) > key(ranked[j])
	})
	return ranked
}

func (s *similarityService) Statistics(scores []SimilarityScore) SimilarityStatistics {
	stats := SimilarityStatistics{Count: len(scores)}
	if len(scores) == 0 {
		return stats
	}

	values := make([]float64, len(scores))
	for i, sc := range scores {
		values[i] = sc.Percentage
	}
	sort.Float64s(values)

	stats.Min = values[0]
	stats.Max = values[len(values)-1]

	var sum float64
	for _, v := range values {
		sum += v
		if v >= 90 {
			stats.Above90++
		}
		if v >= 70 {
			stats.Above70++
		}
		if v >= 50 {
			stats.Above50++
		}
	}
	stats.Mean = sum / float64(len(values))

	mid := len(values) / 2
	if len(values)%2 == 0 {
		stats.Median = (values[mid-1] + values[mid]) / 2
	} else {
		stats.Median = values[mid]
	}

	var variance float64
	for _, v := range values {
		d := v - stats.Mean
		variance += d * d
	}
	stats.StdDev = math.Sqrt(variance / float64(len(values)))

	return stats
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
