package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alfredoptarigan/resume-matcher/internal/apperrors"
	"alfredoptarigan/resume-matcher/internal/models"
)

// In-memory repository fakes.

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
}

func (r *fakeJobRepo) FindByID(id uuid.UUID) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindResourceNotFound, "job not found")
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) UpdateEmbedding(id uuid.UUID, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return apperrors.New(apperrors.KindResourceNotFound, "job not found")
	}
	job.Embedding = embedding
	return nil
}

type fakeResumeRepo struct {
	mu          sync.Mutex
	resumes     map[uuid.UUID]*models.Resume
	findByIDOps int
}

func (r *fakeResumeRepo) FindByID(id uuid.UUID) (*models.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findByIDOps++
	resume, ok := r.resumes[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindResourceNotFound, "resume not found")
	}
	copied := *resume
	return &copied, nil
}

func (r *fakeResumeRepo) FindByIDs(ids []uuid.UUID) ([]models.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Resume
	for _, id := range ids {
		if resume, ok := r.resumes[id]; ok {
			out = append(out, *resume)
		}
	}
	return out, nil
}

func (r *fakeResumeRepo) FindProcessed(limit int) ([]models.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Resume
	for _, resume := range r.resumes {
		if resume.IsProcessed {
			out = append(out, *resume)
		}
	}
	return out, nil
}

func (r *fakeResumeRepo) FindWithoutEmbedding(limit int) ([]models.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Resume
	for _, resume := range r.resumes {
		if len(resume.Embedding) == 0 {
			out = append(out, *resume)
		}
	}
	return out, nil
}

func (r *fakeResumeRepo) UpdateEmbedding(id uuid.UUID, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resume, ok := r.resumes[id]
	if !ok {
		return apperrors.New(apperrors.KindResourceNotFound, "resume not found")
	}
	resume.Embedding = embedding
	resume.IsProcessed = true
	return nil
}

func (r *fakeResumeRepo) UpdateSkills(id uuid.UUID, skills []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resume, ok := r.resumes[id]
	if !ok {
		return apperrors.New(apperrors.KindResourceNotFound, "resume not found")
	}
	resume.ExtractedSkills = skills
	return nil
}

// snapshot returns a copy of a stored resume without counting as a lookup.
func (r *fakeResumeRepo) snapshot(id uuid.UUID) (models.Resume, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resume, ok := r.resumes[id]
	if !ok {
		return models.Resume{}, false
	}
	return *resume, true
}

func (r *fakeResumeRepo) lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByIDOps
}

type fakeMatchRepo struct {
	rows map[string]models.MatchResult
}

func pairKey(jobID, resumeID uuid.UUID) string {
	return jobID.String() + ":" + resumeID.String()
}

func (r *fakeMatchRepo) Upsert(result *models.MatchResult) error {
	r.rows[pairKey(result.JobID, result.ResumeID)] = *result
	return nil
}

func (r *fakeMatchRepo) UpsertBatch(results []models.MatchResult) error {
	for _, result := range results {
		r.rows[pairKey(result.JobID, result.ResumeID)] = result
	}
	return nil
}

func (r *fakeMatchRepo) FindPair(jobID, resumeID uuid.UUID) (*models.MatchResult, error) {
	row, ok := r.rows[pairKey(jobID, resumeID)]
	if !ok {
		return nil, apperrors.New(apperrors.KindResourceNotFound, "match result not found")
	}
	return &row, nil
}

func (r *fakeMatchRepo) FindByJobID(jobID uuid.UUID) ([]models.MatchResult, error) {
	var out []models.MatchResult
	for _, row := range r.rows {
		if row.JobID == jobID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) DeleteByJobID(jobID uuid.UUID) error {
	for key, row := range r.rows {
		if row.JobID == jobID {
			delete(r.rows, key)
		}
	}
	return nil
}

// fakeVectorStore records index operations. The matcher and worker call it
// from scoring goroutines.
type fakeVectorStore struct {
	mu             sync.Mutex
	jobUpserts     map[uuid.UUID]int
	resumeUpserts  map[uuid.UUID]int
	deletedDocIDs  []string
	searchResponse []models.SimilarResume
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		jobUpserts:    make(map[uuid.UUID]int),
		resumeUpserts: make(map[uuid.UUID]int),
	}
}

func (v *fakeVectorStore) InitCollection(ctx context.Context) error { return nil }

func (v *fakeVectorStore) UpsertJobVector(ctx context.Context, job *models.Job) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.jobUpserts[job.ID]++
	return nil
}

func (v *fakeVectorStore) UpsertResumeVector(ctx context.Context, resume *models.Resume) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resumeUpserts[resume.ID]++
	return nil
}

func (v *fakeVectorStore) SearchSimilarResumes(ctx context.Context, queryVector []float32, limit int) ([]models.SimilarResume, error) {
	return v.searchResponse, nil
}

func (v *fakeVectorStore) DeleteVector(ctx context.Context, docID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deletedDocIDs = append(v.deletedDocIDs, docID)
	return nil
}

func (v *fakeVectorStore) jobIndexed(id uuid.UUID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.jobUpserts[id] > 0
}

func (v *fakeVectorStore) resumeIndexed(id uuid.UUID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resumeUpserts[id] > 0
}

func (v *fakeVectorStore) deleted() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.deletedDocIDs...)
}

// Fixed-output stubs for isolating the weighted combination.

type fixedSimilarity struct {
	pct  float64
	conf float64
}

func (s *fixedSimilarity) Cosine(a, b []float32) float64 { return 0 }
func (s *fixedSimilarity) ToPercentage(raw float64, method ScalingMethod) float64 {
	return s.pct
}
func (s *fixedSimilarity) Confidence(raw, quality float64) float64 { return s.conf }
func (s *fixedSimilarity) Score(a, b []float32, quality float64) SimilarityScore {
	return SimilarityScore{Percentage: s.pct, Confidence: s.conf}
}
func (s *fixedSimilarity) BatchScore(ctx context.Context, query []float32, candidates [][]float32, quality float64) []SimilarityScore {
	out := make([]SimilarityScore, len(candidates))
	for i := range out {
		out[i] = SimilarityScore{Percentage: s.pct, Confidence: s.conf}
	}
	return out
}
func (s *fixedSimilarity) Filter(scores []SimilarityScore, minPercentage float64) []SimilarityScore {
	return scores
}
func (s *fixedSimilarity) Rank(scores []SimilarityScore, by RankBy) []SimilarityScore {
	return scores
}
func (s *fixedSimilarity) Statistics(scores []SimilarityScore) SimilarityStatistics {
	return SimilarityStatistics{Count: len(scores)}
}

type fixedSkills struct {
	comparison SkillComparison
}

func (s *fixedSkills) ExtractSkills(ctx context.Context, text string) SkillProfile {
	return emptyProfile()
}
func (s *fixedSkills) CompareSkills(jobSkills, resumeSkills []string) SkillComparison {
	return s.comparison
}
func (s *fixedSkills) AnalyzeGaps(ctx context.Context, jobText, resumeText string) GapAnalysis {
	return GapAnalysis{Comparison: s.comparison, ExtractionMethod: "patterns"}
}

type matcherFixture struct {
	jobRepo    *fakeJobRepo
	resumeRepo *fakeResumeRepo
	matchRepo  *fakeMatchRepo
	model      *stubEmbeddingModel
	cache      *memoryCache
	vectors    *fakeVectorStore
	matcher    MatcherService
}

func newMatcherFixture(t *testing.T, similarity SimilarityService, skills SkillService) *matcherFixture {
	t.Helper()
	f := &matcherFixture{
		jobRepo:    &fakeJobRepo{jobs: make(map[uuid.UUID]*models.Job)},
		resumeRepo: &fakeResumeRepo{resumes: make(map[uuid.UUID]*models.Resume)},
		matchRepo:  &fakeMatchRepo{rows: make(map[string]models.MatchResult)},
		model:      &stubEmbeddingModel{dimension: 8},
		cache:      newMemoryCache(),
		vectors:    newFakeVectorStore(),
	}
	embedding := newTestEmbeddingService(f.model, newMemoryCache())
	explanation := newTestExplanationService(&stubTextGenerator{response: modelExplanation}, newMemoryCache())

	f.matcher = NewMatcherService(
		f.jobRepo, f.resumeRepo, f.matchRepo,
		embedding, similarity, skills, explanation, f.cache, f.vectors,
		MatcherOptions{}, zap.NewNop(),
	)
	return f
}

func (f *matcherFixture) addJob(embedding []float32) *models.Job {
	job := &models.Job{
		ID:          uuid.New(),
		Title:       "Backend Engineer",
		Description: "Build services",
		Embedding:   embedding,
		IsActive:    true,
	}
	f.jobRepo.jobs[job.ID] = job
	return job
}

func (f *matcherFixture) addResume(name string, embedding []float32) *models.Resume {
	resume := &models.Resume{
		ID:            uuid.New(),
		CandidateName: name,
		Content:       "resume content for " + name,
		Embedding:     embedding,
		IsProcessed:   true,
	}
	f.resumeRepo.resumes[resume.ID] = resume
	return resume
}

func TestScorePairWeightedCombination(t *testing.T) {
	f := newMatcherFixture(t,
		&fixedSimilarity{pct: 80.0, conf: 0.9},
		&fixedSkills{comparison: SkillComparison{
			MatchedSkills:   []string{"python"},
			MissingSkills:   []string{"sql"},
			MatchPercentage: 50.0,
		}},
	)
	job := f.addJob([]float32{1, 0})
	resume := f.addResume("Alice", []float32{1, 0})

	result, err := f.matcher.ScorePair(context.Background(), job.ID, resume.ID)

	require.NoError(t, err)
	assert.InDelta(t, 71.0, result.OverallScore, 1e-9)
	assert.InDelta(t, 80.0, result.SimilarityScore, 1e-9)
	assert.InDelta(t, 50.0, result.SkillMatchPercentage, 1e-9)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.False(t, result.FallbackUsed)
}

func TestScorePairPersistsResult(t *testing.T) {
	f := newMatcherFixture(t,
		&fixedSimilarity{pct: 80.0, conf: 0.9},
		&fixedSkills{comparison: SkillComparison{MatchPercentage: 50.0}},
	)
	job := f.addJob([]float32{1, 0})
	resume := f.addResume("Alice", []float32{1, 0})
	ctx := context.Background()

	_, err := f.matcher.ScorePair(ctx, job.ID, resume.ID)
	require.NoError(t, err)

	// Scoring the same pair again updates in place, never duplicates.
	_, err = f.matcher.ScorePair(ctx, job.ID, resume.ID)
	require.NoError(t, err)

	assert.Len(t, f.matchRepo.rows, 1)
	stored, err := f.matchRepo.FindPair(job.ID, resume.ID)
	require.NoError(t, err)
	assert.InDelta(t, 71.0, stored.OverallScore, 1e-9)
}

func TestScorePairComputesMissingEmbeddings(t *testing.T) {
	f := newMatcherFixture(t,
		&fixedSimilarity{pct: 60.0, conf: 0.8},
		&fixedSkills{comparison: SkillComparison{MatchPercentage: 40.0}},
	)
	job := f.addJob(nil)
	resume := f.addResume("Bob", nil)

	_, err := f.matcher.ScorePair(context.Background(), job.ID, resume.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, f.model.encodeCalls)
	assert.NotEmpty(t, f.jobRepo.jobs[job.ID].Embedding)
	assert.NotEmpty(t, f.resumeRepo.resumes[resume.ID].Embedding)

	// Fresh embeddings are mirrored into the vector index as they are stored.
	assert.True(t, f.vectors.jobIndexed(job.ID))
	assert.True(t, f.vectors.resumeIndexed(resume.ID))
}

func TestScorePairSkipsIndexForStoredEmbeddings(t *testing.T) {
	f := newMatcherFixture(t,
		&fixedSimilarity{pct: 60.0, conf: 0.8},
		&fixedSkills{comparison: SkillComparison{MatchPercentage: 40.0}},
	)
	job := f.addJob([]float32{1, 0})
	resume := f.addResume("Bob", []float32{1, 0})

	_, err := f.matcher.ScorePair(context.Background(), job.ID, resume.ID)

	require.NoError(t, err)
	assert.False(t, f.vectors.jobIndexed(job.ID))
	assert.False(t, f.vectors.resumeIndexed(resume.ID))
}

func TestScorePairPersistsExtractedSkills(t *testing.T) {
	similarity := NewSimilarityService(ScalingLinear, 4, zap.NewNop())
	skills := NewSkillService(nil, false, zap.NewNop())
	f := newMatcherFixture(t, similarity, skills)

	job := f.addJob([]float32{1, 0})
	resume := f.addResume("Alice", []float32{1, 0})
	resume.Content = "Seasoned python developer with docker and kubernetes experience"

	_, err := f.matcher.ScorePair(context.Background(), job.ID, resume.ID)

	require.NoError(t, err)
	stored, ok := f.resumeRepo.snapshot(resume.ID)
	require.True(t, ok)
	assert.Contains(t, stored.ExtractedSkills, "python")
	assert.Contains(t, stored.ExtractedSkills, "docker")
}

func TestPurgeJobMatches(t *testing.T) {
	f, job, _ := matchManyFixture(t)
	ctx := context.Background()

	_, err := f.matcher.MatchMany(ctx, models.MatchingRequest{JobID: job.ID.String()})
	require.NoError(t, err)
	require.NotEmpty(t, f.matchRepo.rows)

	otherJob := f.addJob([]float32{0, 1})
	require.NoError(t, f.matchRepo.Upsert(&models.MatchResult{
		JobID:    otherJob.ID,
		ResumeID: uuid.New(),
	}))

	require.NoError(t, f.matcher.PurgeJobMatches(ctx, job.ID))

	remaining, err := f.matchRepo.FindByJobID(job.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	kept, err := f.matchRepo.FindByJobID(otherJob.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	assert.Contains(t, f.vectors.deleted(), job.ID.String())
}

func TestScorePairMissingJob(t *testing.T) {
	f := newMatcherFixture(t,
		&fixedSimilarity{pct: 60.0, conf: 0.8},
		&fixedSkills{},
	)
	resume := f.addResume("Bob", []float32{1, 0})

	_, err := f.matcher.ScorePair(context.Background(), uuid.New(), resume.ID)

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindResourceNotFound))
}

func TestScorePairExplanationBuckets(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{85, "is an excellent match"},
		{65, "is a good match"},
		{45, "is a moderate match"},
		{20, "has limited alignment"},
	}

	for _, tt := range tests {
		explanation := pairExplanation(tt.score, SkillComparison{}, "Backend Engineer", "Alice")
		assert.Contains(t, explanation, "Alice "+tt.expected)
		assert.Contains(t, explanation, "Backend Engineer position")
	}
}

// matchManyFixture sets up a job with three resumes scoring 70, 35 and 0
// under linear scaling (identical, orthogonal and opposite vectors with no
// skill overlap).
func matchManyFixture(t *testing.T) (*matcherFixture, *models.Job, [3]*models.Resume) {
	t.Helper()
	similarity := NewSimilarityService(ScalingLinear, 4, zap.NewNop())
	skills := NewSkillService(nil, false, zap.NewNop())

	f := newMatcherFixture(t, similarity, skills)
	job := f.addJob([]float32{1, 0})

	resumes := [3]*models.Resume{
		f.addResume("Identical", []float32{1, 0}),  // similarity 100 -> overall 70
		f.addResume("Orthogonal", []float32{0, 1}), // similarity 50 -> overall 35
		f.addResume("Opposite", []float32{-1, 0}),  // similarity 0 -> overall 0
	}
	return f, job, resumes
}

func TestMatchManyFiltersAndRanks(t *testing.T) {
	f, job, resumes := matchManyFixture(t)

	results, err := f.matcher.MatchMany(context.Background(), models.MatchingRequest{
		JobID:             job.ID.String(),
		MinScoreThreshold: 30,
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, resumes[0].ID, results[0].ResumeID)
	assert.InDelta(t, 70.0, results[0].OverallScore, 1e-9)
	assert.Equal(t, resumes[1].ID, results[1].ResumeID)
	assert.InDelta(t, 35.0, results[1].OverallScore, 1e-9)

	// Only the survivors are persisted.
	assert.Len(t, f.matchRepo.rows, 2)
}

func TestMatchManyMaxResults(t *testing.T) {
	f, job, resumes := matchManyFixture(t)

	results, err := f.matcher.MatchMany(context.Background(), models.MatchingRequest{
		JobID:      job.ID.String(),
		MaxResults: 1,
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, resumes[0].ID, results[0].ResumeID)
}

func TestMatchManyCachesFullBatch(t *testing.T) {
	f, job, _ := matchManyFixture(t)
	ctx := context.Background()

	_, err := f.matcher.MatchMany(ctx, models.MatchingRequest{
		JobID:             job.ID.String(),
		MinScoreThreshold: 30,
	})
	require.NoError(t, err)

	opsAfterFirst := f.resumeRepo.lookups()

	// A second request with a different threshold is served from the cached
	// unfiltered batch without rescoring.
	results, err := f.matcher.MatchMany(ctx, models.MatchingRequest{
		JobID:             job.ID.String(),
		MinScoreThreshold: 60,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 70.0, results[0].OverallScore, 1e-9)
	assert.Equal(t, opsAfterFirst, f.resumeRepo.lookups())
}

func TestMatchManySkipsInvalidResumeIDs(t *testing.T) {
	f, job, resumes := matchManyFixture(t)

	results, err := f.matcher.MatchMany(context.Background(), models.MatchingRequest{
		JobID: job.ID.String(),
		ResumeIDs: []string{
			resumes[0].ID.String(),
			resumes[0].ID.String(), // duplicate, scored once
			"",
			"not-a-uuid",
			uuid.New().String(), // unknown resume
		},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, resumes[0].ID, results[0].ResumeID)
}

func TestMatchManyInvalidJobID(t *testing.T) {
	f, _, _ := matchManyFixture(t)

	_, err := f.matcher.MatchMany(context.Background(), models.MatchingRequest{
		JobID: "not-a-uuid",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestMatchManyTieBreaksByResumeID(t *testing.T) {
	similarity := NewSimilarityService(ScalingLinear, 4, zap.NewNop())
	skills := NewSkillService(nil, false, zap.NewNop())
	f := newMatcherFixture(t, similarity, skills)

	job := f.addJob([]float32{1, 0})
	a := f.addResume("First", []float32{1, 0})
	b := f.addResume("Second", []float32{1, 0})

	results, err := f.matcher.MatchMany(context.Background(), models.MatchingRequest{
		JobID: job.ID.String(),
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].OverallScore, results[1].OverallScore)

	expectedFirst, expectedSecond := a.ID, b.ID
	if expectedSecond.String() < expectedFirst.String() {
		expectedFirst, expectedSecond = expectedSecond, expectedFirst
	}
	assert.Equal(t, expectedFirst, results[0].ResumeID)
	assert.Equal(t, expectedSecond, results[1].ResumeID)
}

func TestMatchStatistics(t *testing.T) {
	f, job, _ := matchManyFixture(t)
	ctx := context.Background()

	for i, score := range []float64{90, 72, 55, 30} {
		result := models.MatchResult{
			JobID:         job.ID,
			ResumeID:      uuid.New(),
			OverallScore:  score,
			MissingSkills: []string{"sql", fmt.Sprintf("skill-%d", i)},
		}
		require.NoError(t, f.matchRepo.Upsert(&result))
	}

	stats, err := f.matcher.MatchStatistics(ctx, job.ID)

	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalCandidates)
	assert.InDelta(t, 61.75, stats.AvgScore, 1e-9)
	assert.InDelta(t, 90.0, stats.TopScore, 1e-9)
	assert.Equal(t, 2, stats.CandidatesAbove70)
	assert.Equal(t, 3, stats.CandidatesAbove50)
	require.NotEmpty(t, stats.MostCommonMissingSkills)
	assert.Equal(t, "sql", stats.MostCommonMissingSkills[0])
}

func TestMatchStatisticsEmpty(t *testing.T) {
	f, job, _ := matchManyFixture(t)

	stats, err := f.matcher.MatchStatistics(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Zero(t, stats.TotalCandidates)
	assert.Empty(t, stats.MostCommonMissingSkills)
}
