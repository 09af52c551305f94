package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/tracker"
)

// errorHandler renders every handler error as {"error", "code"} with the
// status its code maps to.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status, body := s.errorResponse(c.Path(), err)
	return c.Status(status).JSON(body)
}

func (s *Server) errorResponse(path string, err error) (int, fiber.Map) {
	var limit *tracker.DailyLimitError
	if errors.As(err, &limit) {
		return fiber.StatusConflict, fiber.Map{
			"error":         limit.Error(),
			"code":          apperrors.CodeDailyLimit,
			"medication_id": limit.MedicationID,
			"medication":    limit.MedicationName,
			"frequency":     limit.Frequency,
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fiber.Map{"error": fe.Message}
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		s.logger.Error("Unhandled error", zap.String("path", path), zap.Error(err))
		return fiber.StatusInternalServerError, fiber.Map{"error": "internal error", "code": apperrors.CodeInternal}
	}

	status := statusFor(appErr.Code)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", path), zap.Error(err))
	}
	return status, fiber.Map{"error": appErr.Message, "code": appErr.Code}
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeValidation, apperrors.CodeBadRequest:
		return fiber.StatusBadRequest
	case apperrors.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case apperrors.CodeForbidden:
		return fiber.StatusForbidden
	case apperrors.CodeNotFound:
		return fiber.StatusNotFound
	case apperrors.CodeDailyLimit, apperrors.CodeProfileGuard, apperrors.CodeConflict:
		return fiber.StatusConflict
	case apperrors.CodeStorage:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
