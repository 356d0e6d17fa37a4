package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/observability"
	"github.com/noah-isme/astra-go-api/internal/repository"
)

// SubjectSubmissionGraded is the event subject published after a grading event.
const SubjectSubmissionGraded = "astra.submissions.graded"

// GradeInput carries the raw grading outcome reported by the exercise service.
type GradeInput struct {
	ServicePoints    int
	ServiceMaxPoints int
	Feedback         string
	GradingData      datatypes.JSON
	GraderID         *uint
	// IgnoreDeadline skips late-penalty evaluation, used for staff regrades.
	IgnoreDeadline bool
}

// GradedEvent is the payload published on SubjectSubmissionGraded.
type GradedEvent struct {
	SubmissionID       uint     `json:"submission_id"`
	ExerciseID         uint     `json:"exercise_id"`
	Submitter          uint     `json:"submitter"`
	Grade              int      `json:"grade"`
	LatePenaltyApplied *float64 `json:"late_penalty_applied"`
}

// GradingService scales raw service points to the exercise's point range,
// applies late penalties under deviation-adjusted deadlines and maintains the
// best-submission bookkeeping.
type GradingService interface {
	Grade(ctx context.Context, submission models.Submission, input GradeInput) (models.Submission, error)
	// RoundTotal sums the student's best grades over the round's non-hidden
	// exercises in non-hidden categories.
	RoundTotal(ctx context.Context, roundID, submitter uint) (int, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	objects     repository.LearningObjectRepository
	rounds      repository.RoundRepository
	deviations  DeviationService
	gradebook   GradebookWriter
	events      EventPublisher
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingService constructs a GradingService instance. The gradebook and
// events collaborators may be nil.
func NewGradingService(submissions repository.SubmissionRepository, objects repository.LearningObjectRepository, rounds repository.RoundRepository, deviations DeviationService, gradebook GradebookWriter, events EventPublisher, logger zerolog.Logger) GradingService {
	return &gradingService{
		submissions: submissions,
		objects:     objects,
		rounds:      rounds,
		deviations:  deviations,
		gradebook:   gradebook,
		events:      events,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/astra-go-api/internal/service/grading"),
		now:         time.Now,
	}
}

func (s *gradingService) Grade(ctx context.Context, submission models.Submission, input GradeInput) (models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submission.ID)),
		attribute.Int64("grading.service_points", int64(input.ServicePoints)),
	))
	defer span.End()

	exercise, err := s.objects.GetByID(ctx, submission.ExerciseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exercise_lookup_failed")
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrExerciseNotFound
		}
		return models.Submission{}, err
	}

	round, err := s.rounds.GetByID(ctx, exercise.RoundID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "round_lookup_failed")
		return models.Submission{}, err
	}

	scaled := scalePoints(input.ServicePoints, input.ServiceMaxPoints, exercise.MaxPoints)

	grade := scaled
	var penaltyApplied *float64
	if !input.IgnoreDeadline {
		grade, penaltyApplied = s.applyLatePenalty(ctx, exercise, round, submission, scaled)
	}

	feedback := s.sanitizer.Sanitize(input.Feedback)

	// A repeated identical result is a no-op. Regrades that change any written
	// field, such as a lifted late penalty or new feedback, fall through.
	if submission.IsGraded() && gradeOutcomeUnchanged(submission, input, grade, penaltyApplied, feedback) {
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		return submission, nil
	}

	now := s.now()
	submission.Grade = grade
	submission.ServicePoints = input.ServicePoints
	submission.ServiceMaxPoints = input.ServiceMaxPoints
	submission.LatePenaltyApplied = penaltyApplied
	submission.Feedback = feedback
	submission.GradingData = input.GradingData
	submission.GradingTime = &now
	submission.GraderID = input.GraderID
	submission.Status = models.SubmissionStatusReady

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return models.Submission{}, err
	}

	observability.GradingEvents().WithLabelValues(models.SubmissionStatusReady).Inc()

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("exercise_id", submission.ExerciseID).
		Int("grade", grade).
		Msg("submission graded")

	s.afterBestChange(ctx, exercise, round, submission)

	span.SetAttributes(attribute.Int64("grading.grade", int64(grade)))

	return submission, nil
}

// applyLatePenalty deducts the round's late penalty when the submission
// landed between the student's effective deadline and effective late
// deadline. Deviations flagged penalty-exempt suppress the deduction.
func (s *gradingService) applyLatePenalty(ctx context.Context, exercise models.LearningObject, round models.Round, submission models.Submission, scaled int) (int, *float64) {
	deadline := round.ClosingTime
	lateDeadline := round.LateSubmissionDeadline
	exempt := false

	if deviation := s.deviations.DeadlineDeviationFor(ctx, exercise.ID, submission.Submitter); deviation != nil {
		deadline = deadline.Add(deviation.Extension())
		lateDeadline = lateDeadline.Add(deviation.Extension())
		exempt = deviation.WithoutLatePenalty
	}

	if exempt || !round.LateSubmissionsAllowed {
		return scaled, nil
	}
	if !submission.SubmissionTime.After(deadline) || submission.SubmissionTime.After(lateDeadline) {
		return scaled, nil
	}

	penalty := round.LateSubmissionPenalty
	graded := int(math.Floor(float64(scaled) * (1 - penalty)))
	return graded, &penalty
}

// afterBestChange recomputes the aggregate round grade and forwards it to the
// gradebook when the freshly graded submission is now the student's best.
func (s *gradingService) afterBestChange(ctx context.Context, exercise models.LearningObject, round models.Round, submission models.Submission) {
	best, err := s.submissions.GetBest(ctx, exercise.ID, submission.Submitter)
	if err != nil {
		s.logger.Warn().Err(err).Uint("exercise_id", exercise.ID).Msg("best submission lookup failed")
		return
	}
	if best.ID != submission.ID {
		return
	}

	if s.gradebook != nil {
		total, err := s.RoundTotal(ctx, round.ID, submission.Submitter)
		if err != nil {
			s.logger.Warn().Err(err).Uint("round_id", round.ID).Msg("round total computation failed")
		} else if err := s.gradebook.WriteGrade(ctx, round.ID, submission.Submitter, total, s.now()); err != nil {
			s.logger.Warn().Err(err).Uint("round_id", round.ID).Msg("gradebook write failed")
		}
	}

	if s.events != nil {
		event := GradedEvent{
			SubmissionID:       submission.ID,
			ExerciseID:         submission.ExerciseID,
			Submitter:          submission.Submitter,
			Grade:              submission.Grade,
			LatePenaltyApplied: submission.LatePenaltyApplied,
		}
		if err := s.events.Publish(SubjectSubmissionGraded, event); err != nil {
			s.logger.Warn().Err(err).Msg("graded event publish failed")
		}
	}
}

func (s *gradingService) RoundTotal(ctx context.Context, roundID, submitter uint) (int, error) {
	exercises, err := s.objects.ListGradedExercisesByRound(ctx, roundID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, exercise := range exercises {
		best, err := s.submissions.GetBest(ctx, exercise.ID, submitter)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return 0, err
		}
		total += best.Grade
	}

	return total, nil
}

// gradeOutcomeUnchanged reports whether grading would rewrite the submission
// with exactly the values it already carries.
func gradeOutcomeUnchanged(submission models.Submission, input GradeInput, grade int, penalty *float64, feedback string) bool {
	if submission.ServicePoints != input.ServicePoints || submission.ServiceMaxPoints != input.ServiceMaxPoints {
		return false
	}
	if submission.Grade != grade || submission.Feedback != feedback {
		return false
	}
	if !bytes.Equal(submission.GradingData, input.GradingData) {
		return false
	}
	if submission.LatePenaltyApplied == nil || penalty == nil {
		return submission.LatePenaltyApplied == nil && penalty == nil
	}
	return *submission.LatePenaltyApplied == *penalty
}

// scalePoints rescales raw service points to the exercise's maximum,
// clamping the result into [0, maxPoints].
func scalePoints(servicePoints, serviceMaxPoints, maxPoints int) int {
	if serviceMaxPoints <= 0 {
		return 0
	}

	scaled := int(math.Round(float64(servicePoints) * float64(maxPoints) / float64(serviceMaxPoints)))
	if scaled < 0 {
		return 0
	}
	if scaled > maxPoints {
		return maxPoints
	}
	return scaled
}
