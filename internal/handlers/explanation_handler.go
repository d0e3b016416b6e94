package handlers

import (
	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/resume-matcher/internal/services"
)

type ExplanationHandler struct {
	explanations services.ExplanationService
}

func NewExplanationHandler(explanations services.ExplanationService) *ExplanationHandler {
	return &ExplanationHandler{explanations: explanations}
}

type batchExplanationRequest struct {
	Explanations []services.ExplanationRequest `json:"explanations"`
}

// HandleExplain handles POST /explanations
func (h *ExplanationHandler) HandleExplain(c *fiber.Ctx) error {
	var req services.ExplanationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if req.JobDescription == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "job_description is required",
		})
	}
	if req.ResumeContent == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resume_content is required",
		})
	}
	if req.MatchScore < 0 || req.MatchScore > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "match_score must be between 0 and 100",
		})
	}

	resp := h.explanations.ExplainStructured(c.Context(), req)
	return c.JSON(resp)
}

// HandleExplainBatch handles POST /explanations/batch
func (h *ExplanationHandler) HandleExplainBatch(c *fiber.Ctx) error {
	var req batchExplanationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if len(req.Explanations) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "explanations list is empty",
		})
	}
	if len(req.Explanations) > 50 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "at most 50 explanations per batch",
		})
	}

	result := h.explanations.ExplainBatch(c.Context(), req.Explanations)
	return c.JSON(result)
}
