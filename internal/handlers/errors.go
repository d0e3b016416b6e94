package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/resume-matcher/internal/apperrors"
)

// statusForError maps typed error kinds to HTTP status codes.
func statusForError(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	case apperrors.KindResourceNotFound:
		return fiber.StatusNotFound
	case apperrors.KindRateLimit:
		return fiber.StatusTooManyRequests
	case apperrors.KindExternalService, apperrors.KindEmbeddingGeneration,
		apperrors.KindExplanationService:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	resp := fiber.Map{"error": err.Error()}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp["code"] = string(appErr.Kind)
		if len(appErr.Context) > 0 {
			resp["context"] = appErr.Context
		}
	}
	return c.Status(statusForError(err)).JSON(resp)
}
