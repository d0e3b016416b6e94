package models

// MatchingRequest asks the matcher to score a set of resumes against a job.
// An empty ResumeIDs list means "all eligible resumes" up to the configured
// limit.
type MatchingRequest struct {
	JobID               string   `json:"job_id" validate:"required,uuid"`
	ResumeIDs           []string `json:"resume_ids,omitempty"`
	IncludeExplanations bool     `json:"include_explanations"`
	MinScoreThreshold   float64  `json:"min_score_threshold"`
	MaxResults          int      `json:"max_results,omitempty"`
}

type PairRequest struct {
	JobID    string `json:"job_id" validate:"required,uuid"`
	ResumeID string `json:"resume_id" validate:"required,uuid"`
}

// MatchStatistics summarizes the stored matches of a job.
type MatchStatistics struct {
	TotalCandidates         int      `json:"total_candidates"`
	AvgScore                float64  `json:"avg_score"`
	TopScore                float64  `json:"top_score"`
	CandidatesAbove70       int      `json:"candidates_above_70"`
	CandidatesAbove50       int      `json:"candidates_above_50"`
	MostCommonMissingSkills []string `json:"most_common_missing_skills"`
}

// SimilarResume is one hit from the vector index search.
type SimilarResume struct {
	ResumeID      string  `json:"resume_id"`
	CandidateName string  `json:"candidate_name"`
	Score         float32 `json:"score"`
}
