package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/astra-go-api/internal/dto"
	"github.com/noah-isme/astra-go-api/internal/middleware"
	"github.com/noah-isme/astra-go-api/internal/service"
	"github.com/noah-isme/astra-go-api/internal/utils"
	"github.com/noah-isme/astra-go-api/pkg/aplus"
)

// ExerciseHandler manages exercise and chapter page endpoints.
type ExerciseHandler struct {
	exercises service.ExerciseService
	grading   service.GradingService
	logger    zerolog.Logger
}

// NewExerciseHandler builds an exercise handler instance.
func NewExerciseHandler(exercises service.ExerciseService, grading service.GradingService, logger zerolog.Logger) *ExerciseHandler {
	return &ExerciseHandler{
		exercises: exercises,
		grading:   grading,
		logger:    logger.With().Str("component", "exercise_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ExerciseHandler) Register(exercises fiber.Router, rounds fiber.Router) {
	exercises.Get("/:id", h.get)
	exercises.Get("/:id/page", h.page)
	rounds.Get("/:id/exercises", h.listByRound)
	rounds.Get("/:id/points", middleware.WithAuth(h.roundPoints, middleware.AuthOptions{RequireUser: true}))
}

func (h *ExerciseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	object, err := h.exercises.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercise retrieved", dto.NewExerciseResponse(object))
}

func (h *ExerciseHandler) page(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	object, page, err := h.exercises.LoadPage(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercise page retrieved", dto.NewExercisePageResponse(object, page))
}

func (h *ExerciseHandler) listByRound(c *fiber.Ctx) error {
	roundID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	objects, err := h.exercises.ListByRound(c.UserContext(), roundID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercises retrieved", dto.NewExerciseResponseSlice(objects))
}

func (h *ExerciseHandler) roundPoints(c *fiber.Ctx) error {
	roundID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submitter := userIDFromContext(c)
	if submitter == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	total, err := h.grading.RoundTotal(c.UserContext(), roundID, submitter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "round points retrieved", dto.RoundTotalResponse{
		RoundID:   roundID,
		Submitter: submitter,
		Total:     total,
	})
}

func (h *ExerciseHandler) handleError(c *fiber.Ctx, err error) error {
	var connErr *aplus.ConnectionError
	var svcErr *aplus.ServiceError
	var parseErr *aplus.ParseError
	switch {
	case errors.Is(err, service.ErrExerciseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exercise not found")
	case errors.Is(err, service.ErrExerciseUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "exercise is under maintenance")
	case errors.As(err, &connErr), errors.As(err, &svcErr), errors.As(err, &parseErr):
		requestLogger(h.logger, c).Error().Err(err).Msg("exercise service unreachable")
		return utils.SendError(c, fiber.StatusBadGateway, "exercise service unavailable")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
