package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/resume-matcher/internal/models"
	"alfredoptarigan/resume-matcher/internal/repositories"
	"alfredoptarigan/resume-matcher/internal/services"
)

type MatchHandler struct {
	matcher services.MatcherService
	jobRepo repositories.JobRepository
	vectors services.VectorStore
}

func NewMatchHandler(
	matcher services.MatcherService,
	jobRepo repositories.JobRepository,
	vectors services.VectorStore,
) *MatchHandler {
	return &MatchHandler{
		matcher: matcher,
		jobRepo: jobRepo,
		vectors: vectors,
	}
}

// HandleMatchPair handles POST /match/pair
func (h *MatchHandler) HandleMatchPair(c *fiber.Ctx) error {
	var req models.PairRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job_id format",
		})
	}
	resumeID, err := uuid.Parse(req.ResumeID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid resume_id format",
		})
	}

	result, err := h.matcher.ScorePair(c.Context(), jobID, resumeID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(result)
}

// HandleMatch handles POST /match
func (h *MatchHandler) HandleMatch(c *fiber.Ctx) error {
	var req models.MatchingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if req.JobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "job_id is required",
		})
	}
	if req.MinScoreThreshold < 0 || req.MinScoreThreshold > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "min_score_threshold must be between 0 and 100",
		})
	}

	results, err := h.matcher.MatchMany(c.Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"job_id":  req.JobID,
		"count":   len(results),
		"matches": results,
	})
}

// HandleStatistics handles GET /match/:job_id/statistics
func (h *MatchHandler) HandleStatistics(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("job_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job_id format",
		})
	}

	stats, err := h.matcher.MatchStatistics(c.Context(), jobID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(stats)
}

// HandlePurgeMatches handles DELETE /match/:job_id
func (h *MatchHandler) HandlePurgeMatches(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("job_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job_id format",
		})
	}

	if err := h.matcher.PurgeJobMatches(c.Context(), jobID); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"job_id": jobID.String(),
		"status": "purged",
	})
}

// HandleSimilarResumes handles GET /jobs/:id/similar-resumes
func (h *MatchHandler) HandleSimilarResumes(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id format",
		})
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	job, err := h.jobRepo.FindByID(jobID)
	if err != nil {
		return errorResponse(c, err)
	}
	if !job.HasEmbedding() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Job has no embedding yet, run a match first",
		})
	}

	hits, err := h.vectors.SearchSimilarResumes(c.Context(), job.Embedding, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"job_id":  jobID.String(),
		"count":   len(hits),
		"resumes": hits,
	})
}
