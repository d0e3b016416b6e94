package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"alfredoptarigan/resume-matcher/internal/apperrors"
	"alfredoptarigan/resume-matcher/internal/models"
	"alfredoptarigan/resume-matcher/internal/repositories"
)

type MatcherService interface {
	ScorePair(ctx context.Context, jobID, resumeID uuid.UUID) (*models.MatchResult, error)
	MatchMany(ctx context.Context, req models.MatchingRequest) ([]models.MatchResult, error)
	MatchStatistics(ctx context.Context, jobID uuid.UUID) (models.MatchStatistics, error)
	PurgeJobMatches(ctx context.Context, jobID uuid.UUID) error
}

type MatcherOptions struct {
	SimilarityWeight   float64
	SkillWeight        float64
	MaxConcurrentPairs int
	EligibleLimit      int
	MatchCacheTTL      time.Duration
}

type matcherService struct {
	jobRepo     repositories.JobRepository
	resumeRepo  repositories.ResumeRepository
	matchRepo   repositories.MatchResultRepository
	embedding   EmbeddingService
	similarity  SimilarityService
	skills      SkillService
	explanation ExplanationService
	cache       CacheService
	vectors     VectorStore
	opts        MatcherOptions
	logger      *zap.Logger
}

func NewMatcherService(
	jobRepo repositories.JobRepository,
	resumeRepo repositories.ResumeRepository,
	matchRepo repositories.MatchResultRepository,
	embedding EmbeddingService,
	similarity SimilarityService,
	skills SkillService,
	explanation ExplanationService,
	cache CacheService,
	vectors VectorStore,
	opts MatcherOptions,
	logger *zap.Logger,
) MatcherService {
	if opts.SimilarityWeight <= 0 {
		opts.SimilarityWeight = 0.7
	}
	if opts.SkillWeight <= 0 {
		opts.SkillWeight = 0.3
	}
	if opts.MaxConcurrentPairs <= 0 {
		opts.MaxConcurrentPairs = 10
	}
	if opts.EligibleLimit <= 0 {
		opts.EligibleLimit = 1000
	}
	if opts.MatchCacheTTL <= 0 {
		opts.MatchCacheTTL = 6 * time.Hour
	}
	return &matcherService{
		jobRepo:     jobRepo,
		resumeRepo:  resumeRepo,
		matchRepo:   matchRepo,
		embedding:   embedding,
		similarity:  similarity,
		skills:      skills,
		explanation: explanation,
		cache:       cache,
		vectors:     vectors,
		opts:        opts,
		logger:      logger,
	}
}

// ScorePair computes and persists the match between one job and one resume.
func (m *matcherService) ScorePair(ctx context.Context, jobID, resumeID uuid.UUID) (*models.MatchResult, error) {
	result, err := m.computePair(ctx, jobID, resumeID)
	if err != nil {
		return nil, err
	}
	if err := m.matchRepo.Upsert(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (m *matcherService) computePair(ctx context.Context, jobID, resumeID uuid.UUID) (*models.MatchResult, error) {
	job, err := m.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	resume, err := m.resumeRepo.FindByID(resumeID)
	if err != nil {
		return nil, err
	}

	quality := 1.0

	if !job.HasEmbedding() {
		embedded, err := m.embedding.Embed(ctx, job.EmbeddingText())
		if err != nil {
			return nil, err
		}
		if err := m.jobRepo.UpdateEmbedding(job.ID, embedded.Vector); err != nil {
			return nil, err
		}
		if job, err = m.jobRepo.FindByID(jobID); err != nil {
			return nil, err
		}
		m.indexJob(ctx, job)
		quality = math.Min(quality, embedded.Quality())
	}

	if !resume.HasEmbedding() {
		embedded, err := m.embedding.Embed(ctx, resume.EmbeddingText())
		if err != nil {
			return nil, err
		}
		if err := m.resumeRepo.UpdateEmbedding(resume.ID, embedded.Vector); err != nil {
			return nil, err
		}
		if resume, err = m.resumeRepo.FindByID(resumeID); err != nil {
			return nil, err
		}
		m.indexResume(ctx, resume)
		quality = math.Min(quality, embedded.Quality())
	}

	simScore := m.similarity.Score(job.Embedding, resume.Embedding, quality)
	gaps := m.skills.AnalyzeGaps(ctx, job.EmbeddingText(), resume.EmbeddingText())

	if len(resume.ExtractedSkills) == 0 && len(gaps.ResumeSkills.AllSkills) > 0 {
		if err := m.resumeRepo.UpdateSkills(resume.ID, gaps.ResumeSkills.AllSkills); err != nil {
			m.logger.Warn("failed to persist extracted resume skills",
				zap.String("resume_id", resume.ID.String()), zap.Error(err))
		}
	}

	overall := round2(simScore.Percentage*m.opts.SimilarityWeight +
		gaps.Comparison.MatchPercentage*m.opts.SkillWeight)

	return &models.MatchResult{
		JobID:                job.ID,
		ResumeID:             resume.ID,
		OverallScore:         overall,
		SimilarityScore:      round2(simScore.Percentage),
		SkillMatchPercentage: round2(gaps.Comparison.MatchPercentage),
		Confidence:           simScore.Confidence,
		MatchedSkills:        gaps.Comparison.MatchedSkills,
		MissingSkills:        gaps.Comparison.MissingSkills,
		AdditionalSkills:     gaps.Comparison.AdditionalSkills,
		Explanation: pairExplanation(overall, gaps.Comparison,
			job.Title, resume.CandidateName),
		FallbackUsed: quality < 1.0,
	}, nil
}

// indexJob mirrors a freshly stored job vector into qdrant. Index failures
// are logged and swallowed since postgres remains the source of truth.
func (m *matcherService) indexJob(ctx context.Context, job *models.Job) {
	if m.vectors == nil {
		return
	}
	if err := m.vectors.UpsertJobVector(ctx, job); err != nil {
		m.logger.Warn("failed to index job vector",
			zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

func (m *matcherService) indexResume(ctx context.Context, resume *models.Resume) {
	if m.vectors == nil {
		return
	}
	if err := m.vectors.UpsertResumeVector(ctx, resume); err != nil {
		m.logger.Warn("failed to index resume vector",
			zap.String("resume_id", resume.ID.String()), zap.Error(err))
	}
}

// PurgeJobMatches removes a retired job's stored matches, its cached match
// batches and its entry in the vector index.
func (m *matcherService) PurgeJobMatches(ctx context.Context, jobID uuid.UUID) error {
	if err := m.matchRepo.DeleteByJobID(jobID); err != nil {
		return err
	}

	pattern := fmt.Sprintf("match_results:%s:*", jobID.String())
	if cleared, err := m.cache.ClearPattern(ctx, pattern); err == nil && cleared > 0 {
		m.logger.Info("cleared cached match batches",
			zap.String("job_id", jobID.String()), zap.Int("count", cleared))
	}

	if m.vectors != nil {
		if err := m.vectors.DeleteVector(ctx, jobID.String()); err != nil {
			m.logger.Warn("failed to remove job vector",
				zap.String("job_id", jobID.String()), zap.Error(err))
		}
	}
	return nil
}

// MatchMany scores a set of resumes against a job, caches the full batch,
// then filters, ranks and persists the surviving results.
func (m *matcherService) MatchMany(ctx context.Context, req models.MatchingRequest) ([]models.MatchResult, error) {
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return nil, apperrors.New(apperrors.KindValidation, "invalid job id").
			With("job_id", req.JobID)
	}

	resumes, err := m.resolveResumes(req.ResumeIDs)
	if err != nil {
		return nil, err
	}
	if len(resumes) == 0 {
		m.logger.Warn("no resumes found for matching", zap.String("job_id", req.JobID))
		return []models.MatchResult{}, nil
	}

	resumeIDs := make([]string, len(resumes))
	for i, r := range resumes {
		resumeIDs[i] = r.ID.String()
	}

	cacheKey := matchResultsCacheKey(req.JobID, resumeIDs)

	var cached []models.MatchResult
	if hit, _ := m.cache.Get(ctx, cacheKey, &cached); hit {
		m.logger.Info("serving match results from cache",
			zap.String("job_id", req.JobID), zap.Int("count", len(cached)))
		return m.finalize(ctx, cached, req), nil
	}

	m.logger.Info("matching resumes against job",
		zap.String("job_id", req.JobID), zap.Int("resume_count", len(resumes)))

	results := m.scoreConcurrently(ctx, jobID, resumes)

	// The cache holds the complete unfiltered batch so later requests with
	// different thresholds can reuse it.
	_ = m.cache.Set(ctx, cacheKey, results, m.opts.MatchCacheTTL)

	survivors := m.finalize(ctx, results, req)

	if err := m.matchRepo.UpsertBatch(survivors); err != nil {
		return nil, err
	}

	m.logger.Info("matching completed",
		zap.String("job_id", req.JobID),
		zap.Int("total_scored", len(results)),
		zap.Int("above_threshold", len(survivors)))
	return survivors, nil
}

func (m *matcherService) resolveResumes(ids []string) ([]models.Resume, error) {
	if len(ids) == 0 {
		return m.resumeRepo.FindProcessed(m.opts.EligibleLimit)
	}

	wanted := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, raw := range ids {
		if strings.TrimSpace(raw) == "" {
			m.logger.Warn("skipping empty resume id in match request")
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			m.logger.Warn("skipping invalid resume id", zap.String("resume_id", raw))
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	resumes, err := m.resumeRepo.FindByIDs(wanted)
	if err != nil {
		return nil, err
	}
	if len(resumes) < len(wanted) {
		found := make(map[uuid.UUID]struct{}, len(resumes))
		for _, r := range resumes {
			found[r.ID] = struct{}{}
		}
		for _, id := range wanted {
			if _, ok := found[id]; !ok {
				m.logger.Warn("resume not found", zap.String("resume_id", id.String()))
			}
		}
	}
	return resumes, nil
}

func (m *matcherService) scoreConcurrently(ctx context.Context, jobID uuid.UUID, resumes []models.Resume) []models.MatchResult {
	sem := semaphore.NewWeighted(int64(m.opts.MaxConcurrentPairs))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []models.MatchResult

	for _, resume := range resumes {
		resume := resume
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			result, err := m.computePair(ctx, jobID, resume.ID)
			if err != nil {
				m.logger.Error("match calculation failed",
					zap.String("job_id", jobID.String()),
					zap.String("resume_id", resume.ID.String()),
					zap.Error(err))
				return
			}
			mu.Lock()
			results = append(results, *result)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// finalize applies the request-local threshold, ranking and limit to a full
// batch, then swaps in model explanations when the caller asked for them.
func (m *matcherService) finalize(ctx context.Context, results []models.MatchResult, req models.MatchingRequest) []models.MatchResult {
	survivors := make([]models.MatchResult, 0, len(results))
	for _, r := range results {
		if r.OverallScore >= req.MinScoreThreshold {
			survivors = append(survivors, r)
		}
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].OverallScore != survivors[j].OverallScore {
			return survivors[i].OverallScore > survivors[j].OverallScore
		}
		// Equal scores rank deterministically by resume id.
		return survivors[i].ResumeID.String() < survivors[j].ResumeID.String()
	})

	if req.MaxResults > 0 && len(survivors) > req.MaxResults {
		survivors = survivors[:req.MaxResults]
	}

	if req.IncludeExplanations {
		m.attachModelExplanations(ctx, survivors)
	}
	return survivors
}

func (m *matcherService) attachModelExplanations(ctx context.Context, results []models.MatchResult) {
	jobTexts := make(map[uuid.UUID]string)
	for i := range results {
		jobText, ok := jobTexts[results[i].JobID]
		if !ok {
			job, err := m.jobRepo.FindByID(results[i].JobID)
			if err != nil {
				continue
			}
			jobText = job.EmbeddingText()
			jobTexts[results[i].JobID] = jobText
		}
		resume, err := m.resumeRepo.FindByID(results[i].ResumeID)
		if err != nil {
			continue
		}
		results[i].Explanation = m.explanation.Explain(ctx, jobText, resume.Content,
			results[i].OverallScore, SkillComparison{
				MatchedSkills:    results[i].MatchedSkills,
				MissingSkills:    results[i].MissingSkills,
				AdditionalSkills: results[i].AdditionalSkills,
				MatchPercentage:  results[i].SkillMatchPercentage,
			})
	}
}

func (m *matcherService) MatchStatistics(ctx context.Context, jobID uuid.UUID) (models.MatchStatistics, error) {
	matches, err := m.matchRepo.FindByJobID(jobID)
	if err != nil {
		return models.MatchStatistics{}, err
	}

	stats := models.MatchStatistics{
		MostCommonMissingSkills: []string{},
	}
	if len(matches) == 0 {
		return stats, nil
	}

	stats.TotalCandidates = len(matches)

	var sum float64
	missingCounts := make(map[string]int)
	for _, match := range matches {
		sum += match.OverallScore
		if match.OverallScore > stats.TopScore {
			stats.TopScore = match.OverallScore
		}
		if match.OverallScore >= 70 {
			stats.CandidatesAbove70++
		}
		if match.OverallScore >= 50 {
			stats.CandidatesAbove50++
		}
		for _, skill := range match.MissingSkills {
			missingCounts[skill]++
		}
	}
	stats.AvgScore = round2(sum / float64(len(matches)))
	stats.TopScore = round2(stats.TopScore)

	type skillCount struct {
		skill string
		count int
	}
	counts := make([]skillCount, 0, len(missingCounts))
	for skill, count := range missingCounts {
		counts = append(counts, skillCount{skill, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].skill < counts[j].skill
	})
	if len(counts) > 5 {
		counts = counts[:5]
	}
	for _, sc := range counts {
		stats.MostCommonMissingSkills = append(stats.MostCommonMissingSkills, sc.skill)
	}
	return stats, nil
}

// pairExplanation builds the deterministic explanation stored with every
// match, independent of the language model.
func pairExplanation(score float64, comparison SkillComparison, jobTitle, candidateName string) string {
	var parts []string

	switch {
	case score >= 80:
		parts = append(parts, fmt.Sprintf("%s is an excellent match for the %s position.", candidateName, jobTitle))
	case score >= 60:
		parts = append(parts, fmt.Sprintf("%s is a good match for the %s position.", candidateName, jobTitle))
	case score >= 40:
		parts = append(parts, fmt.Sprintf("%s is a moderate match for the %s position.", candidateName, jobTitle))
	default:
		parts = append(parts, fmt.Sprintf("%s has limited alignment with the %s position.", candidateName, jobTitle))
	}

	if len(comparison.MatchedSkills) > 0 {
		if len(comparison.MatchedSkills) <= 3 {
			parts = append(parts, fmt.Sprintf("Key matching skills include: %s.",
				strings.Join(comparison.MatchedSkills, ", ")))
		} else {
			parts = append(parts, fmt.Sprintf("Strong skills alignment with %d matching competencies including %s.",
				len(comparison.MatchedSkills), strings.Join(comparison.MatchedSkills[:3], ", ")))
		}
	}
	if len(comparison.MissingSkills) > 0 {
		if len(comparison.MissingSkills) <= 3 {
			parts = append(parts, fmt.Sprintf("Areas for development: %s.",
				strings.Join(comparison.MissingSkills, ", ")))
		} else {
			parts = append(parts, fmt.Sprintf("Some skill gaps identified in %d areas including %s.",
				len(comparison.MissingSkills), strings.Join(comparison.MissingSkills[:3], ", ")))
		}
	}

	switch {
	case score >= 70 && comparison.MatchPercentage >= 60:
		parts = append(parts, "Recommended for interview consideration.")
	case score >= 50:
		parts = append(parts, "Consider for further review based on specific requirements.")
	default:
		parts = append(parts, "May not be the best fit for current requirements.")
	}

	return strings.Join(parts, " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
