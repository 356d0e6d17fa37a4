package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/astra-go-api/internal/dto"
	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/service"
	"github.com/noah-isme/astra-go-api/internal/utils"
)

// DeviationHandler manages per-student policy override endpoints for course staff.
type DeviationHandler struct {
	deviations service.DeviationService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewDeviationHandler builds a deviation handler instance.
func NewDeviationHandler(deviations service.DeviationService, validator *validator.Validate, logger zerolog.Logger) *DeviationHandler {
	return &DeviationHandler{
		deviations: deviations,
		validator:  validator,
		logger:     logger.With().Str("component", "deviation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *DeviationHandler) Register(router fiber.Router) {
	router.Post("/deadlines", h.createDeadline)
	router.Post("/submission-limits", h.createSubmissionLimit)
	router.Get("/deadlines/:exerciseId", h.listDeadlines)
	router.Get("/submission-limits/:exerciseId", h.listSubmissionLimits)
}

func (h *DeviationHandler) createDeadline(c *fiber.Ctx) error {
	var payload dto.DeadlineDeviationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	deviation, err := h.deviations.CreateDeadlineDeviation(c.UserContext(), models.DeadlineDeviation{
		ExerciseID:         payload.ExerciseID,
		Submitter:          payload.Submitter,
		ExtraMinutes:       payload.ExtraMinutes,
		WithoutLatePenalty: payload.WithoutLatePenalty,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "deadline deviation created", dto.NewDeadlineDeviationResponse(deviation))
}

func (h *DeviationHandler) createSubmissionLimit(c *fiber.Ctx) error {
	var payload dto.SubmissionLimitDeviationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	deviation, err := h.deviations.CreateSubmissionLimitDeviation(c.UserContext(), models.SubmissionLimitDeviation{
		ExerciseID:       payload.ExerciseID,
		Submitter:        payload.Submitter,
		ExtraSubmissions: payload.ExtraSubmissions,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission limit deviation created", dto.NewSubmissionLimitDeviationResponse(deviation))
}

func (h *DeviationHandler) listDeadlines(c *fiber.Ctx) error {
	exerciseID, err := parseUintParam(c, "exerciseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	deviations, err := h.deviations.ListDeadlineDeviations(c.UserContext(), exerciseID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "deadline deviations retrieved", dto.NewDeadlineDeviationResponseSlice(deviations))
}

func (h *DeviationHandler) listSubmissionLimits(c *fiber.Ctx) error {
	exerciseID, err := parseUintParam(c, "exerciseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	deviations, err := h.deviations.ListSubmissionLimitDeviations(c.UserContext(), exerciseID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission limit deviations retrieved", dto.NewSubmissionLimitDeviationResponseSlice(deviations))
}

func (h *DeviationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrExerciseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exercise not found")
	case errors.Is(err, service.ErrDeviationExists):
		return utils.SendError(c, fiber.StatusConflict, "deviation already exists")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
