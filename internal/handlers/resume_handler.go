package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/resume-matcher/internal/repositories"
	"alfredoptarigan/resume-matcher/internal/services"
)

type ResumeHandler struct {
	resumeRepo repositories.ResumeRepository
	worker     services.EmbeddingWorker
}

func NewResumeHandler(resumeRepo repositories.ResumeRepository, worker services.EmbeddingWorker) *ResumeHandler {
	return &ResumeHandler{
		resumeRepo: resumeRepo,
		worker:     worker,
	}
}

// HandleProcess handles POST /resumes/:id/process. Ingestion calls this
// after inserting a resume so the embedding backfill picks it up without
// waiting for the next poll.
func (h *ResumeHandler) HandleProcess(c *fiber.Ctx) error {
	resumeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid resume id format",
		})
	}

	resume, err := h.resumeRepo.FindByID(resumeID)
	if err != nil {
		return errorResponse(c, err)
	}
	if resume.HasEmbedding() {
		return c.JSON(fiber.Map{
			"resume_id": resumeID.String(),
			"status":    "already_processed",
		})
	}

	h.worker.Enqueue(resumeID)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"resume_id": resumeID.String(),
		"status":    "queued",
	})
}
