package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSimilarityService(method ScalingMethod) SimilarityService {
	return NewSimilarityService(method, 4, zap.NewNop())
}

func TestCosine(t *testing.T) {
	s := newTestSimilarityService(ScalingSigmoid)

	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"nil first", nil, []float32{1, 2}, 0.0},
		{"nil second", []float32{1, 2}, nil, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"zero magnitude", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, s.Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSymmetry(t *testing.T) {
	s := newTestSimilarityService(ScalingSigmoid)
	a := []float32{0.3, -0.7, 1.2, 0.05}
	b := []float32{0.9, 0.1, -0.4, 2.2}
	assert.InDelta(t, s.Cosine(a, b), s.Cosine(b, a), 1e-12)
}

func TestToPercentageLinear(t *testing.T) {
	s := newTestSimilarityService(ScalingLinear)

	assert.InDelta(t, 100.0, s.ToPercentage(1.0, ScalingLinear), 1e-9)
	assert.InDelta(t, 50.0, s.ToPercentage(0.0, ScalingLinear), 1e-9)
	assert.InDelta(t, 0.0, s.ToPercentage(-1.0, ScalingLinear), 1e-9)
	assert.InDelta(t, 75.0, s.ToPercentage(0.5, ScalingLinear), 1e-9)
}

func TestToPercentageSigmoid(t *testing.T) {
	s := newTestSimilarityService(ScalingSigmoid)

	assert.InDelta(t, 50.0, s.ToPercentage(0.0, ScalingSigmoid), 1e-9)

	// Monotonic in the raw score.
	prev := -1.0
	for _, raw := range []float64{-1, -0.5, 0, 0.25, 0.5, 0.75, 1} {
		pct := s.ToPercentage(raw, ScalingSigmoid)
		assert.Greater(t, pct, prev)
		assert.GreaterOrEqual(t, pct, 0.0)
		assert.LessOrEqual(t, pct, 100.0)
		prev = pct
	}
}

func TestToPercentageExponential(t *testing.T) {
	s := newTestSimilarityService(ScalingExponential)

	assert.InDelta(t, 0.0, s.ToPercentage(-0.5, ScalingExponential), 1e-9)
	assert.InDelta(t, 0.0, s.ToPercentage(0.0, ScalingExponential), 1e-9)
	assert.InDelta(t, 100.0, s.ToPercentage(1.0, ScalingExponential), 1e-9)
}

func TestConfidence(t *testing.T) {
	s := newTestSimilarityService(ScalingSigmoid)

	// Strength of exactly 0.5 sits at the sigmoid midpoint.
	assert.InDelta(t, 0.5, s.Confidence(0.5, 1.0), 1e-9)

	// Lower embedding quality lowers confidence for the same raw score.
	full := s.Confidence(0.9, 1.0)
	degraded := s.Confidence(0.9, 0.5)
	assert.Greater(t, full, degraded)

	// Confidence depends on magnitude, not sign.
	assert.InDelta(t, s.Confidence(0.8, 1.0), s.Confidence(-0.8, 1.0), 1e-12)
}

func TestBatchScorePreservesOrder(t *testing.T) {
	s := newTestSimilarityService(ScalingLinear)
	query := []float32{1, 0}
	candidates := [][]float32{
		{1, 0},  // raw 1.0
		{0, 1},  // raw 0.0
		{-1, 0}, // raw -1.0
	}

	scores := s.BatchScore(context.Background(), query, candidates, 1.0)

	assert.Len(t, scores, 3)
	assert.InDelta(t, 1.0, scores[0].Raw, 1e-9)
	assert.InDelta(t, 0.0, scores[1].Raw, 1e-9)
	assert.InDelta(t, -1.0, scores[2].Raw, 1e-9)
}

func TestFilterByThreshold(t *testing.T) {
	s := newTestSimilarityService(ScalingSigmoid)

	scores := []SimilarityScore{
		{Percentage: 90},
		{Percentage: 40},
		{Percentage: 70},
	}

	kept := s.Filter(scores, 70)

	require.Len(t, kept, 2)
	assert.InDelta(t, 90.0, kept[0].Percentage, 1e-9)
	assert.InDelta(t, 70.0, kept[1].Percentage, 1e-9)
}

func TestRankByField(t *testing.T) {
	s := newTestSimilarityService(ScalingSigmoid)

	scores := []SimilarityScore{
		{Raw: 0.2, Percentage: 60, Confidence: 0.9},
		{Raw: 0.8, Percentage: 90, Confidence: 0.3},
		{Raw: 0.5, Percentage: 75, Confidence: 0.6},
	}

	byPct := s.Rank(scores, RankByPercentage)
	assert.InDelta(t, 90.0, byPct[0].Percentage, 1e-9)
	assert.InDelta(t, 60.0, byPct[2].Percentage, 1e-9)

	byConf := s.Rank(scores, RankByConfidence)
	assert.InDelta(t, 0.9, byConf[0].Confidence, 1e-9)

	// Input order untouched.
	assert.InDelta(t, 0.2, scores[0].Raw, 1e-9)
}

func TestStatistics(t *testing.T) {
	s := newTestSimilarityService(ScalingSigmoid)

	scores := []SimilarityScore{
		{Percentage: 90},
		{Percentage: 72},
		{Percentage: 55},
		{Percentage: 30},
	}

	stats := s.Statistics(scores)

	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, 61.75, stats.Mean, 1e-9)
	assert.InDelta(t, 63.5, stats.Median, 1e-9)
	assert.InDelta(t, 30.0, stats.Min, 1e-9)
	assert.InDelta(t, 90.0, stats.Max, 1e-9)
	assert.Equal(t, 1, stats.Above90)
	assert.Equal(t, 2, stats.Above70)
	assert.Equal(t, 3, stats.Above50)
}

func TestStatisticsEmpty(t *testing.T) {
	s := newTestSimilarityService(ScalingSigmoid)
	stats := s.Statistics(nil)
	assert.Equal(t, 0, stats.Count)
	assert.Zero(t, stats.Mean)
}
