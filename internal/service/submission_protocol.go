package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/observability"
	"github.com/noah-isme/astra-go-api/internal/repository"
)

// ErrPageNotLoaded indicates the interpreter was invoked without a fetched
// page; fetch-layer failures must be surfaced before interpretation.
var ErrPageNotLoaded = errors.New("exercise page not loaded")

// ProtocolInterpreter drives submission status transitions from the flags of
// an extracted exercise page.
type ProtocolInterpreter interface {
	// Apply classifies the page and advances the submission accordingly. A
	// page that is neither accepted nor rejected moves the submission to the
	// error status: the service did respond, just inconclusively.
	Apply(ctx context.Context, submission models.Submission, exercise models.LearningObject, page *ExercisePage) (models.Submission, error)
}

type protocolInterpreter struct {
	submissions repository.SubmissionRepository
	grading     GradingService
	logger      zerolog.Logger
}

// NewProtocolInterpreter constructs a ProtocolInterpreter instance.
func NewProtocolInterpreter(submissions repository.SubmissionRepository, grading GradingService, logger zerolog.Logger) ProtocolInterpreter {
	return &protocolInterpreter{
		submissions: submissions,
		grading:     grading,
		logger:      logger.With().Str("component", "protocol_interpreter").Logger(),
	}
}

func (s *protocolInterpreter) Apply(ctx context.Context, submission models.Submission, exercise models.LearningObject, page *ExercisePage) (models.Submission, error) {
	if page == nil || !page.IsLoaded {
		return submission, ErrPageNotLoaded
	}

	switch {
	case page.IsAccepted && page.IsGraded:
		serviceMaxPoints := page.MaxPoints
		if serviceMaxPoints == 0 {
			serviceMaxPoints = exercise.MaxPoints
		}
		return s.grading.Grade(ctx, submission, GradeInput{
			ServicePoints:    page.Points,
			ServiceMaxPoints: serviceMaxPoints,
			Feedback:         page.Content,
		})

	case page.IsAccepted:
		// Queued for asynchronous grading; the feedback may itself render a
		// "please wait" page and is kept for display until the next poll.
		return s.transition(ctx, submission, models.SubmissionStatusWaiting, page.Content)

	case page.IsRejected:
		return s.transition(ctx, submission, models.SubmissionStatusRejected, page.Content)

	default:
		s.logger.Warn().
			Uint("submission_id", submission.ID).
			Msg("exercise service response matched no protocol outcome")
		return s.transition(ctx, submission, models.SubmissionStatusError, page.Content)
	}
}

func (s *protocolInterpreter) transition(ctx context.Context, submission models.Submission, status, feedback string) (models.Submission, error) {
	submission.Status = status
	submission.Feedback = feedback

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return models.Submission{}, err
	}

	observability.GradingEvents().WithLabelValues(status).Inc()

	return submission, nil
}
