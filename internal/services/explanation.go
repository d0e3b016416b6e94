package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"alfredoptarigan/resume-matcher/internal/resilience"
)

// maxPromptSection caps job and resume text inside the LLM prompt.
const maxPromptSection = 2000

const (
	explanationSourceModel    = "model"
	explanationSourceTemplate = "template"
)

// explanationRecord is the cached form of an explanation. The source travels
// with the text so cache hits keep reporting how it was produced.
type explanationRecord struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// StructuredExplanation is the parsed form of an explanation text.
type StructuredExplanation struct {
	OverallAssessment string   `json:"overall_assessment"`
	KeyStrengths      []string `json:"key_strengths"`
	AreasOfConcern    []string `json:"areas_of_concern"`
	Recommendation    string   `json:"recommendation"`
	ConfidenceLevel   string   `json:"confidence_level"`
}

type ExplanationRequest struct {
	JobDescription      string          `json:"job_description"`
	ResumeContent       string          `json:"resume_content"`
	MatchScore          float64         `json:"match_score"`
	SkillAnalysis       SkillComparison `json:"skill_analysis"`
	IncludeImprovements bool            `json:"include_improvements"`
}

type ExplanationResponse struct {
	MatchScore             float64               `json:"match_score"`
	SkillAnalysis          SkillComparison       `json:"skill_analysis"`
	Explanation            StructuredExplanation `json:"explanation"`
	ImprovementSuggestions []string              `json:"improvement_suggestions,omitempty"`
	Source                 string                `json:"explanation_source"`
}

type BatchExplanationResult struct {
	Explanations    []ExplanationResponse `json:"explanations"`
	SuccessfulCount int                   `json:"successful_count"`
	FailedCount     int                   `json:"failed_count"`
	TotalTime       float64               `json:"total_time_seconds"`
}

type ExplanationService interface {
	Explain(ctx context.Context, jobDesc, resumeContent string, score float64, analysis SkillComparison) string
	ExplainStructured(ctx context.Context, req ExplanationRequest) ExplanationResponse
	ExplainBatch(ctx context.Context, requests []ExplanationRequest) BatchExplanationResult
}

type explanationService struct {
	generator     TextGenerator
	cache         CacheService
	breaker       *resilience.CircuitBreaker
	retryPolicy   resilience.RetryPolicy
	cacheTTL      time.Duration
	maxConcurrent int64
	logger        *zap.Logger
}

type ExplanationServiceOptions struct {
	CacheTTL      time.Duration
	MaxConcurrent int
}

func NewExplanationService(generator TextGenerator, cache CacheService, opts ExplanationServiceOptions, logger *zap.Logger) ExplanationService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	policy := resilience.DefaultRetryPolicy()
	policy.BaseDelay = 2 * time.Second

	return &explanationService{
		generator:     generator,
		cache:         cache,
		breaker:       resilience.NewCircuitBreaker("explanation", 5, 120*time.Second),
		retryPolicy:   policy,
		cacheTTL:      opts.CacheTTL,
		maxConcurrent: int64(opts.MaxConcurrent),
		logger:        logger,
	}
}

// Explain returns an explanation text for a scored pairing, from cache, the
// language model, or the deterministic template in that order.
func (s *explanationService) Explain(ctx context.Context, jobDesc, resumeContent string, score float64, analysis SkillComparison) string {
	record := s.explain(ctx, jobDesc, resumeContent, score, analysis)
	return record.Text
}

func (s *explanationService) explain(ctx context.Context, jobDesc, resumeContent string, score float64, analysis SkillComparison) explanationRecord {
	key := explanationCacheKey(jobDesc, resumeContent, score, analysis.MatchedSkills)

	var cached explanationRecord
	if hit, _ := s.cache.Get(ctx, key, &cached); hit && cached.Text != "" {
		return cached
	}

	record := explanationRecord{Source: explanationSourceModel}
	text, err := s.generateWithModel(ctx, jobDesc, resumeContent, score, analysis)
	if err != nil {
		s.logger.Info("falling back to template explanation",
			zap.Float64("match_score", score), zap.Error(err))
		text = templateExplanation(score, analysis.MatchedSkills, analysis.MissingSkills)
		record.Source = explanationSourceTemplate
	}
	record.Text = text

	_ = s.cache.Set(ctx, key, record, s.cacheTTL)
	return record
}

func (s *explanationService) generateWithModel(ctx context.Context, jobDesc, resumeContent string, score float64, analysis SkillComparison) (string, error) {
	prompt := buildExplanationPrompt(jobDesc, resumeContent, score, analysis)

	var explanation string
	err := resilience.Retry(ctx, s.retryPolicy, func(ctx context.Context) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			text, err := s.generator.Complete(ctx, prompt)
			if err != nil {
				return err
			}
			explanation = strings.TrimSpace(text)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return explanation, nil
}

func (s *explanationService) ExplainStructured(ctx context.Context, req ExplanationRequest) ExplanationResponse {
	record := s.explain(ctx, req.JobDescription, req.ResumeContent, req.MatchScore, req.SkillAnalysis)

	resp := ExplanationResponse{
		MatchScore:    req.MatchScore,
		SkillAnalysis: req.SkillAnalysis,
		Explanation:   parseStructuredExplanation(record.Text),
		Source:        record.Source,
	}
	if req.IncludeImprovements {
		resp.ImprovementSuggestions = generateSuggestions(req.SkillAnalysis.MissingSkills)
	}
	return resp
}

// ExplainBatch fans requests out under bounded concurrency, preserving
// request order in the result.
func (s *explanationService) ExplainBatch(ctx context.Context, requests []ExplanationRequest) BatchExplanationResult {
	start := time.Now()

	responses := make([]ExplanationResponse, len(requests))
	sem := semaphore.NewWeighted(s.maxConcurrent)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successful, failed int

	for i, req := range requests {
		i, req := i, req
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			responses[i] = s.ExplainStructured(ctx, req)
			mu.Lock()
			successful++
			mu.Unlock()
		}()
	}
	wg.Wait()

	return BatchExplanationResult{
		Explanations:    responses,
		SuccessfulCount: successful,
		FailedCount:     failed,
		TotalTime:       time.Since(start).Seconds(),
	}
}

func buildExplanationPrompt(jobDesc, resumeContent string, score float64, analysis SkillComparison) string {
	if len(jobDesc) > maxPromptSection {
		jobDesc = jobDesc[:maxPromptSection]
	}
	if len(resumeContent) > maxPromptSection {
		resumeContent = resumeContent[:maxPromptSection]
	}

	matched := "None identified"
	if len(analysis.MatchedSkills) > 0 {
		matched = strings.Join(topN(analysis.MatchedSkills, 10), ", ")
	}
	missing := "None identified"
	if len(analysis.MissingSkills) > 0 {
		missing = strings.Join(topN(analysis.MissingSkills, 10), ", ")
	}

	return fmt.Sprintf(`You are an expert HR analyst. Analyze the match between this job description and candidate resume, then provide a clear, professional explanation.

Job Description:
%s

Candidate Resume:
%s

Match Score: %.1f%%

Skill Analysis:
- Matched Skills: %s
- Missing Skills: %s

Please provide a structured explanation with:

1. **Overall Assessment** (2-3 sentences about the match quality)
2. **Key Strengths** (3-5 specific points where the candidate aligns well)
3. **Areas of Concern** (3-5 specific gaps or misalignments)
4. **Recommendation** (1-2 sentences with hiring recommendation)

Keep the explanation professional, specific, and actionable. Focus on concrete skills, experience, and qualifications mentioned in both documents.`,
		jobDesc, resumeContent, score, matched, missing)
}

// templateExplanation is the deterministic fallback used when the language
// model is unavailable.
func templateExplanation(score float64, matchedSkills, missingSkills []string) string {
	var assessment, recommendation string
	switch {
	case score >= 80:
		assessment = "This candidate shows excellent alignment with the job requirements."
		recommendation = "Strongly recommended for interview."
	case score >= 60:
		assessment = "This candidate shows good potential with some areas for development."
		recommendation = "Recommended for interview with focus on addressing skill gaps."
	case score >= 40:
		assessment = "This candidate shows moderate alignment with mixed qualifications."
		recommendation = "Consider for interview if other candidates are limited."
	default:
		assessment = "This candidate shows limited alignment with the job requirements."
		recommendation = "Not recommended unless significant training is planned."
	}

	var strengths []string
	if len(matchedSkills) > 0 {
		strengths = append(strengths, fmt.Sprintf("Possesses %d relevant skills including %s",
			len(matchedSkills), strings.Join(topN(matchedSkills, 3), ", ")))
	}
	if score >= 50 {
		strengths = append(strengths, "Resume content shows good semantic alignment with job description")
	}
	if len(strengths) == 0 {
		strengths = append(strengths, "Basic qualifications present in resume")
	}

	var concerns []string
	if len(missingSkills) > 0 {
		concerns = append(concerns, fmt.Sprintf("Missing %d key skills: %s",
			len(missingSkills), strings.Join(topN(missingSkills, 3), ", ")))
	}
	if score < 60 {
		concerns = append(concerns, "Limited alignment between resume content and job requirements")
	}
	if len(concerns) == 0 {
		concerns = append(concerns, "No significant concerns identified")
	}

	var b strings.Builder
	b.WriteString("**Overall Assessment**\n")
	fmt.Fprintf(&b, "%s The match score of %.1f%% reflects the degree of alignment between the candidate's background and the position requirements.\n\n", assessment, score)
	b.WriteString("**Key Strengths**\n")
	for _, strength := range topN(strengths, 5) {
		fmt.Fprintf(&b, "• %s\n", strength)
	}
	b.WriteString("\n**Areas of Concern**\n")
	for _, concern := range topN(concerns, 5) {
		fmt.Fprintf(&b, "• %s\n", concern)
	}
	b.WriteString("\n**Recommendation**\n")
	b.WriteString(recommendation)
	return b.String()
}

var (
	bulletPattern = regexp.MustCompile(`^[•\-\*]\s*(.+)`)
	headerPattern = regexp.MustCompile(`\*\*.*?\*\*`)
)

// parseStructuredExplanation walks the explanation text section by section.
// Unparseable text still yields a usable structure wrapping the raw text.
func parseStructuredExplanation(text string) StructuredExplanation {
	parsed := StructuredExplanation{ConfidenceLevel: "Medium"}

	current := ""
	for _, section := range strings.Split(text, "\n\n") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		switch {
		case strings.HasPrefix(section, "**Overall Assessment**") || strings.HasPrefix(section, "Overall Assessment"):
			current = "assessment"
			parsed.OverallAssessment = strings.TrimSpace(headerPattern.ReplaceAllString(section, ""))
		case strings.HasPrefix(section, "**Key Strengths**") || strings.HasPrefix(section, "Key Strengths"):
			current = "strengths"
			parsed.KeyStrengths = append(parsed.KeyStrengths, extractBullets(section)...)
		case strings.HasPrefix(section, "**Areas of Concern**") || strings.HasPrefix(section, "Areas of Concern"):
			current = "concerns"
			parsed.AreasOfConcern = append(parsed.AreasOfConcern, extractBullets(section)...)
		case strings.HasPrefix(section, "**Recommendation**") || strings.HasPrefix(section, "Recommendation"):
			current = "recommendation"
			parsed.Recommendation = strings.TrimSpace(headerPattern.ReplaceAllString(section, ""))
		default:
			switch current {
			case "strengths":
				parsed.KeyStrengths = append(parsed.KeyStrengths, extractBullets(section)...)
			case "concerns":
				parsed.AreasOfConcern = append(parsed.AreasOfConcern, extractBullets(section)...)
			case "assessment":
				if parsed.OverallAssessment == "" {
					parsed.OverallAssessment = section
				}
			case "recommendation":
				if parsed.Recommendation == "" {
					parsed.Recommendation = section
				}
			}
		}
	}

	parsed.KeyStrengths = topN(parsed.KeyStrengths, 5)
	parsed.AreasOfConcern = topN(parsed.AreasOfConcern, 5)

	lower := strings.ToLower(text)
	if strings.Contains(lower, "excellent") || strings.Contains(lower, "strong") {
		parsed.ConfidenceLevel = "High"
	} else if strings.Contains(lower, "limited") || strings.Contains(lower, "concern") {
		parsed.ConfidenceLevel = "Low"
	}

	// Raw text that matched no section still gets wrapped so callers always
	// receive something presentable.
	if parsed.OverallAssessment == "" && len(parsed.KeyStrengths) == 0 && parsed.Recommendation == "" {
		assessment := text
		if len(assessment) > 200 {
			assessment = assessment[:200] + "..."
		}
		return StructuredExplanation{
			OverallAssessment: assessment,
			KeyStrengths:      []string{"Analysis available in full explanation"},
			AreasOfConcern:    []string{"See detailed explanation for concerns"},
			Recommendation:    "Review full explanation for recommendation",
			ConfidenceLevel:   "Medium",
		}
	}
	if parsed.OverallAssessment == "" {
		parsed.OverallAssessment = "Match analysis completed"
	}
	if parsed.Recommendation == "" {
		parsed.Recommendation = "Review based on specific requirements"
	}
	return parsed
}

func extractBullets(section string) []string {
	var bullets []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "**") {
			continue
		}
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			bullets = append(bullets, strings.TrimSpace(m[1]))
		}
	}
	return bullets
}
