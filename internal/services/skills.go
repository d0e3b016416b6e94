package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SkillProfile is the categorized set of skills found in one document.
type SkillProfile struct {
	TechnicalSkills  []string           `json:"technical_skills"`
	SoftSkills       []string           `json:"soft_skills"`
	Certifications   []string           `json:"certifications"`
	AllSkills        []string           `json:"all_skills"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// SkillComparison is the set comparison of job requirements against a resume.
type SkillComparison struct {
	MatchedSkills    []string `json:"matched_skills"`
	MissingSkills    []string `json:"missing_skills"`
	AdditionalSkills []string `json:"additional_skills"`
	MatchPercentage  float64  `json:"match_percentage"`
}

// GapAnalysis bundles both profiles, their comparison and suggestions.
type GapAnalysis struct {
	JobSkills        SkillProfile    `json:"job_skills"`
	ResumeSkills     SkillProfile    `json:"resume_skills"`
	Comparison       SkillComparison `json:"comparison"`
	Suggestions      []string        `json:"suggestions"`
	ExtractionMethod string          `json:"extraction_method"`
}

type SkillService interface {
	ExtractSkills(ctx context.Context, text string) SkillProfile
	CompareSkills(jobSkills, resumeSkills []string) SkillComparison
	AnalyzeGaps(ctx context.Context, jobText, resumeText string) GapAnalysis
}

type skillService struct {
	generator  TextGenerator
	nlpEnabled bool
	logger     *zap.Logger

	technicalPatterns []*regexp.Regexp
	softPatterns      []*regexp.Regexp
	certPatterns      []*regexp.Regexp
}

// Skill dictionaries. Entries are stored lowercase and matched
// case-insensitively against document text.
var (
	technicalSkillList = []string{
		"python", "java", "javascript", "typescript", "c++", "c#", "php", "ruby", "go", "rust",
		"swift", "kotlin", "scala", "matlab", "sql", "html", "css",
		"react", "angular", "vue", "node.js", "express", "django", "flask", "spring", "laravel",
		"bootstrap", "jquery", "pandas", "numpy", "scikit-learn", "tensorflow", "pytorch",
		"mysql", "postgresql", "mongodb", "redis", "elasticsearch", "oracle", "sqlite", "cassandra",
		"aws", "azure", "gcp", "docker", "kubernetes", "terraform", "ansible", "jenkins",
		"git", "linux", "bash", "nginx", "apache",
		"machine learning", "deep learning", "data analysis", "statistics", "tableau", "power bi",
		"spark", "hadoop", "etl", "data mining", "predictive modeling",
		"ios", "android", "react native", "flutter", "xamarin",
		"unit testing", "integration testing", "selenium", "jest", "pytest", "junit",
	}

	softSkillList = []string{
		"leadership", "communication", "teamwork", "problem solving", "analytical thinking",
		"creative thinking", "project management", "time management", "critical thinking",
		"adaptability", "collaboration", "presentation skills", "negotiation", "mentoring",
		"coaching", "strategic planning", "decision making", "conflict resolution",
		"customer service", "sales", "marketing", "business development",
	}

	certificationList = []string{
		"aws certified", "azure certified", "google cloud certified", "pmp", "scrum master",
		"cissp", "comptia", "cisco certified", "microsoft certified", "oracle certified",
		"certified kubernetes administrator", "certified ethical hacker", "six sigma",
	}

	// skillSynonyms maps variants to their canonical form, applied before
	// any set comparison.
	skillSynonyms = map[string]string{
		"js":                       "javascript",
		"ecmascript":               "javascript",
		"ts":                       "typescript",
		"py":                       "python",
		"postgres":                 "postgresql",
		"psql":                     "postgresql",
		"mongo":                    "mongodb",
		"nodejs":                   "node.js",
		"node":                     "node.js",
		"reactjs":                  "react",
		"react.js":                 "react",
		"angularjs":                "angular",
		"angular.js":               "angular",
		"vuejs":                    "vue",
		"vue.js":                   "vue",
		"ml":                       "machine learning",
		"artificial intelligence":  "machine learning",
		"ai":                       "machine learning",
		"dl":                       "deep learning",
		"neural networks":          "deep learning",
		"nlp":                      "natural language processing",
		"dev ops":                  "devops",
		"continuous integration":   "ci/cd",
		"continuous deployment":    "ci/cd",
		"restful api":              "rest api",
		"micro services":           "microservices",
		"scrum":                    "agile",
		"kanban":                   "agile",
	}
)

var (
	technicalPatternSources = []string{
		`\b(?:python|java|javascript|typescript|c\+\+|c#|php|ruby|go|rust|swift|kotlin|scala|matlab)\b`,
		`\b(?:html|css|react|angular|vue|node\.?js|express|django|flask|spring|laravel)\b`,
		`\b(?:sql|mysql|postgresql|mongodb|redis|elasticsearch|oracle|sqlite)\b`,
		`\b(?:aws|azure|gcp|google cloud|docker|kubernetes|terraform|ansible)\b`,
		`\b(?:pandas|numpy|scikit-learn|tensorflow|pytorch|spark|hadoop|tableau|power bi)\b`,
		`\b(?:git|jenkins|ci/cd|linux|bash|shell scripting|nginx|apache)\b`,
	}
	softPatternSources = []string{
		`\b(?:leadership|communication|teamwork|problem solving|analytical|creative)\b`,
		`\b(?:project management|time management|critical thinking|adaptability)\b`,
		`\b(?:collaboration|presentation|negotiation|mentoring|coaching)\b`,
	}
	certPatternSources = []string{
		`\b(?:aws certified|azure certified|google cloud certified|pmp|scrum master)\b`,
		`\b(?:cissp|comptia|cisco|microsoft certified|oracle certified)\b`,
	}
)

func NewSkillService(generator TextGenerator, nlpEnabled bool, logger *zap.Logger) SkillService {
	s := &skillService{
		generator:  generator,
		nlpEnabled: nlpEnabled && generator != nil,
		logger:     logger,
	}
	for _, src := range technicalPatternSources {
		s.technicalPatterns = append(s.technicalPatterns, regexp.MustCompile(src))
	}
	for _, src := range softPatternSources {
		s.softPatterns = append(s.softPatterns, regexp.MustCompile(src))
	}
	for _, src := range certPatternSources {
		s.certPatterns = append(s.certPatterns, regexp.MustCompile(src))
	}
	return s
}

// NormalizeSkill lowercases a skill and resolves it through the synonym table.
func NormalizeSkill(skill string) string {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if canonical, ok := skillSynonyms[skill]; ok {
		return canonical
	}
	return skill
}

func (s *skillService) ExtractSkills(ctx context.Context, text string) SkillProfile {
	if strings.TrimSpace(text) == "" {
		return emptyProfile()
	}

	profile := s.extractByPatterns(text)

	if s.nlpEnabled {
		if nlpProfile, err := s.extractWithModel(ctx, text); err != nil {
			s.logger.Warn("model-based skill extraction failed, using pattern results only",
				zap.Error(err))
		} else {
			profile = unionProfiles(profile, nlpProfile)
		}
	}
	return profile
}

func (s *skillService) extractByPatterns(text string) SkillProfile {
	textLower := strings.ToLower(text)

	technical := make(map[string]struct{})
	soft := make(map[string]struct{})
	certs := make(map[string]struct{})

	collect := func(patterns []*regexp.Regexp, into map[string]struct{}) {
		for _, p := range patterns {
			for _, match := range p.FindAllString(textLower, -1) {
				into[NormalizeSkill(match)] = struct{}{}
			}
		}
	}
	collect(s.technicalPatterns, technical)
	collect(s.softPatterns, soft)
	collect(s.certPatterns, certs)

	// Substring check against the dictionaries catches multi-word skills
	// the patterns do not cover.
	for _, skill := range technicalSkillList {
		if strings.Contains(textLower, skill) {
			technical[skill] = struct{}{}
		}
	}
	for _, skill := range softSkillList {
		if strings.Contains(textLower, skill) {
			soft[skill] = struct{}{}
		}
	}
	for _, cert := range certificationList {
		if strings.Contains(textLower, cert) {
			certs[cert] = struct{}{}
		}
	}

	return buildProfile(technical, soft, certs, 0.8)
}

// extractWithModel asks the language model for candidate skill phrases and
// keeps only those present in the curated dictionaries.
func (s *skillService) extractWithModel(ctx context.Context, text string) (SkillProfile, error) {
	if len(text) > 4000 {
		text = text[:4000]
	}
	prompt := fmt.Sprintf(
		"Extract the professional skills mentioned in the following text. "+
			"Respond with a JSON array of lowercase skill names and nothing else.\n\n%s", text)

	raw, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		return emptyProfile(), err
	}

	var candidates []string
	if err := json.Unmarshal([]byte(extractJSON(raw)), &candidates); err != nil {
		return emptyProfile(), fmt.Errorf("failed to parse skill list: %w", err)
	}

	technical := make(map[string]struct{})
	soft := make(map[string]struct{})
	certs := make(map[string]struct{})

	for _, candidate := range candidates {
		normalized := NormalizeSkill(candidate)
		switch {
		case containsSkill(technicalSkillList, normalized):
			technical[normalized] = struct{}{}
		case containsSkill(softSkillList, normalized):
			soft[normalized] = struct{}{}
		case containsSkill(certificationList, normalized):
			certs[normalized] = struct{}{}
		}
	}

	return buildProfile(technical, soft, certs, 0.9), nil
}

func (s *skillService) CompareSkills(jobSkills, resumeSkills []string) SkillComparison {
	jobSet := normalizeSet(jobSkills)
	resumeSet := normalizeSet(resumeSkills)

	var matched, missing, additional []string
	for skill := range jobSet {
		if _, ok := resumeSet[skill]; ok {
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}
	for skill := range resumeSet {
		if _, ok := jobSet[skill]; !ok {
			additional = append(additional, skill)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	sort.Strings(additional)

	var matchPct float64
	if len(jobSet) > 0 {
		matchPct = float64(len(matched)) / float64(len(jobSet)) * 100
	}

	return SkillComparison{
		MatchedSkills:    matched,
		MissingSkills:    missing,
		AdditionalSkills: additional,
		MatchPercentage:  matchPct,
	}
}

func (s *skillService) AnalyzeGaps(ctx context.Context, jobText, resumeText string) GapAnalysis {
	jobProfile := s.ExtractSkills(ctx, jobText)
	resumeProfile := s.ExtractSkills(ctx, resumeText)
	comparison := s.CompareSkills(jobProfile.AllSkills, resumeProfile.AllSkills)

	method := "patterns"
	if s.nlpEnabled {
		method = "patterns+model"
	}

	return GapAnalysis{
		JobSkills:        jobProfile,
		ResumeSkills:     resumeProfile,
		Comparison:       comparison,
		Suggestions:      generateSuggestions(comparison.MissingSkills),
		ExtractionMethod: method,
	}
}

// generateSuggestions derives up to 5 improvement suggestions from the
// missing-skill set without any external call.
func generateSuggestions(missingSkills []string) []string {
	if len(missingSkills) == 0 {
		return []string{"Great! You have all the required skills for this position."}
	}

	var technical, soft, certs []string
	for _, skill := range missingSkills {
		switch {
		case containsSkill(technicalSkillList, skill):
			technical = append(technical, skill)
		case containsSkill(softSkillList, skill):
			soft = append(soft, skill)
		case containsSkill(certificationList, skill):
			certs = append(certs, skill)
		}
	}

	var suggestions []string
	if len(technical) > 0 {
		suggestions = append(suggestions,
			"Consider learning these technical skills: "+strings.Join(topN(technical, 5), ", "))
	}
	if len(soft) > 0 {
		suggestions = append(suggestions,
			"Develop these soft skills: "+strings.Join(topN(soft, 3), ", "))
	}
	if len(certs) > 0 {
		suggestions = append(suggestions,
			"Consider obtaining these certifications: "+strings.Join(topN(certs, 3), ", "))
	}
	if len(missingSkills) > 5 {
		suggestions = append(suggestions,
			"Focus on the most critical skills first, then gradually build up the others")
	}
	suggestions = append(suggestions,
		"Update your resume to highlight relevant projects and experiences that demonstrate these skills")

	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions
}

func normalizeSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, skill := range skills {
		normalized := NormalizeSkill(skill)
		if normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

func containsSkill(list []string, skill string) bool {
	for _, s := range list {
		if s == skill {
			return true
		}
	}
	return false
}

func topN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func emptyProfile() SkillProfile {
	return SkillProfile{
		TechnicalSkills:  []string{},
		SoftSkills:       []string{},
		Certifications:   []string{},
		AllSkills:        []string{},
		ConfidenceScores: map[string]float64{},
	}
}

func buildProfile(technical, soft, certs map[string]struct{}, confidence float64) SkillProfile {
	profile := SkillProfile{
		TechnicalSkills:  sortedKeys(technical),
		SoftSkills:       sortedKeys(soft),
		Certifications:   sortedKeys(certs),
		ConfidenceScores: map[string]float64{},
	}
	all := make(map[string]struct{})
	for skill := range technical {
		all[skill] = struct{}{}
	}
	for skill := range soft {
		all[skill] = struct{}{}
	}
	for skill := range certs {
		all[skill] = struct{}{}
	}
	profile.AllSkills = sortedKeys(all)
	for skill := range all {
		profile.ConfidenceScores[skill] = confidence
	}
	return profile
}

func unionProfiles(a, b SkillProfile) SkillProfile {
	technical := make(map[string]struct{})
	soft := make(map[string]struct{})
	certs := make(map[string]struct{})

	for _, skill := range append(a.TechnicalSkills, b.TechnicalSkills...) {
		technical[skill] = struct{}{}
	}
	for _, skill := range append(a.SoftSkills, b.SoftSkills...) {
		soft[skill] = struct{}{}
	}
	for _, skill := range append(a.Certifications, b.Certifications...) {
		certs[skill] = struct{}{}
	}

	merged := buildProfile(technical, soft, certs, 0.8)
	for skill, conf := range a.ConfidenceScores {
		merged.ConfidenceScores[skill] = conf
	}
	for skill, conf := range b.ConfidenceScores {
		if conf > merged.ConfidenceScores[skill] {
			merged.ConfidenceScores[skill] = conf
		}
	}
	return merged
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
