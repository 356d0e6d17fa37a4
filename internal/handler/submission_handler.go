package handler

import (
	"errors"
	"io"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/astra-go-api/internal/dto"
	"github.com/noah-isme/astra-go-api/internal/middleware"
	"github.com/noah-isme/astra-go-api/internal/service"
	"github.com/noah-isme/astra-go-api/internal/utils"
	"github.com/noah-isme/astra-go-api/pkg/aplus"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	submissions service.SubmissionService
	exercises   service.ExerciseService
	grading     service.GradingService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(submissions service.SubmissionService, exercises service.ExerciseService, grading service.GradingService, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		exercises:   exercises,
		grading:     grading,
		validator:   validator,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router groups. The submissions
// group is addressed by token; the staff group carries role guards.
func (h *SubmissionHandler) Register(exercises fiber.Router, submissions fiber.Router, staff fiber.Router) {
	exercises.Post("/:id/submissions", h.create)
	submissions.Get("/:hash", h.get)
	submissions.Post("/:hash/poll", h.poll)
	staff.Post("/:hash/grade", middleware.WithAuth(h.grade, middleware.AuthOptions{Role: middleware.AuthRoleAssistant}))
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	exerciseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submitter := userIDFromContext(c)
	if submitter == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	fields, uploads, err := h.parseForm(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.submissions.Submit(c.UserContext(), exerciseID, submitter, fields, uploads)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", dto.NewSubmissionResponse(submission))
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	submission, err := h.submissions.GetByHash(c.UserContext(), c.Params("hash"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", dto.NewSubmissionResponse(submission))
}

func (h *SubmissionHandler) poll(c *fiber.Ctx) error {
	submission, err := h.submissions.Poll(c.UserContext(), c.Params("hash"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission refreshed", dto.NewSubmissionResponse(submission))
}

// grade records a staff-entered grading outcome. Assistants may only grade
// exercises that allow assistant grading.
func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	grader := userIDFromContext(c)
	if grader == 0 || !isCourseStaff(c) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var payload dto.ManualGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	submission, err := h.submissions.GetByHash(c.UserContext(), c.Params("hash"))
	if err != nil {
		return h.handleError(c, err)
	}

	exercise, err := h.exercises.Get(c.UserContext(), submission.ExerciseID)
	if err != nil {
		return h.handleError(c, err)
	}
	if userRoleFromContext(c) == "assistant" && !exercise.AllowAssistantGrading {
		return utils.SendError(c, fiber.StatusForbidden, "assistant grading is not allowed for this exercise")
	}

	graded, err := h.grading.Grade(c.UserContext(), submission, service.GradeInput{
		ServicePoints:    payload.Points,
		ServiceMaxPoints: payload.MaxPoints,
		Feedback:         payload.Feedback,
		GraderID:         &grader,
		IgnoreDeadline:   payload.IgnoreDeadline,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", dto.NewSubmissionResponse(graded))
}

// parseForm splits a multipart request into plain fields and file uploads.
// Requests without a multipart body fall back to urlencoded form fields.
func (h *SubmissionHandler) parseForm(c *fiber.Ctx) (url.Values, []service.SubmittedUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		fields := url.Values{}
		args := c.Request().PostArgs()
		args.VisitAll(func(key, value []byte) {
			fields.Add(string(key), string(value))
		})
		return fields, nil, nil
	}

	fields := url.Values{}
	for key, values := range form.Value {
		for _, value := range values {
			fields.Add(key, value)
		}
	}

	var uploads []service.SubmittedUpload
	for field, headers := range form.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				return nil, nil, errors.New("unreadable file upload")
			}
			content, err := io.ReadAll(file)
			_ = file.Close()
			if err != nil {
				return nil, nil, errors.New("unreadable file upload")
			}

			uploads = append(uploads, service.SubmittedUpload{
				FieldName: field,
				FileName:  header.Filename,
				MIMEType:  header.Header.Get("Content-Type"),
				Content:   content,
			})
		}
	}

	return fields, uploads, nil
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var connErr *aplus.ConnectionError
	var svcErr *aplus.ServiceError
	var parseErr *aplus.ParseError
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.Is(err, service.ErrExerciseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exercise not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrExerciseUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "exercise is under maintenance")
	case errors.Is(err, service.ErrRoundClosed):
		return utils.SendError(c, fiber.StatusForbidden, "round is not open for submissions")
	case errors.Is(err, service.ErrSubmissionLimitReached):
		return utils.SendError(c, fiber.StatusForbidden, "submission limit reached")
	case errors.Is(err, service.ErrFileTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "submitted file exceeds the size limit")
	case errors.As(err, &connErr), errors.As(err, &svcErr), errors.As(err, &parseErr):
		requestLogger(h.logger, c).Error().Err(err).Msg("exercise service unreachable")
		return utils.SendError(c, fiber.StatusBadGateway, "exercise service unavailable")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
