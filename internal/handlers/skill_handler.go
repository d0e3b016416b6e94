package handlers

import (
	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/resume-matcher/internal/services"
)

type SkillHandler struct {
	skills services.SkillService
}

func NewSkillHandler(skills services.SkillService) *SkillHandler {
	return &SkillHandler{skills: skills}
}

type skillAnalysisRequest struct {
	JobText    string `json:"job_text"`
	ResumeText string `json:"resume_text"`
}

// HandleAnalyzeSkills handles POST /skills/analyze
func (h *SkillHandler) HandleAnalyzeSkills(c *fiber.Ctx) error {
	var req skillAnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if req.JobText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "job_text is required",
		})
	}
	if req.ResumeText == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resume_text is required",
		})
	}

	analysis := h.skills.AnalyzeGaps(c.Context(), req.JobText, req.ResumeText)
	return c.JSON(analysis)
}
