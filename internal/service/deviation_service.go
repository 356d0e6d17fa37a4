package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/repository"
)

// ErrDeviationExists indicates a deviation already exists for the
// (exercise, student) pair. Existing deviations are never overwritten.
var ErrDeviationExists = errors.New("deviation already exists")

// ErrExerciseNotFound indicates the referenced learning object does not exist
// or is not an exercise.
var ErrExerciseNotFound = errors.New("exercise not found")

// ErrSubmissionLimitReached indicates the student has used all allowed
// submission attempts.
var ErrSubmissionLimitReached = errors.New("submission limit reached")

// ErrRoundClosed indicates the submission window, including any personal
// extension, has closed or not yet opened.
var ErrRoundClosed = errors.New("round is not open for submissions")

// DeviationService resolves per-student deadline and submission-limit
// overrides into effective policy decisions.
type DeviationService interface {
	// CanSubmit reports whether the student may submit now. The returned error
	// is ErrRoundClosed or ErrSubmissionLimitReached on refusal.
	CanSubmit(ctx context.Context, exercise models.LearningObject, round models.Round, submitter uint, now time.Time) error
	// EffectiveDeadline is the round closing time plus any personal extension.
	EffectiveDeadline(ctx context.Context, exercise models.LearningObject, round models.Round, submitter uint) time.Time
	// EffectiveLateDeadline is the late submission deadline plus any personal
	// extension.
	EffectiveLateDeadline(ctx context.Context, exercise models.LearningObject, round models.Round, submitter uint) time.Time
	// EffectiveSubmissionLimit resolves the allowed attempt count; zero means
	// unlimited regardless of deviations.
	EffectiveSubmissionLimit(ctx context.Context, exercise models.LearningObject, submitter uint) int
	// DeadlineDeviationFor returns the student's deadline deviation, or nil.
	DeadlineDeviationFor(ctx context.Context, exerciseID, submitter uint) *models.DeadlineDeviation
	CreateDeadlineDeviation(ctx context.Context, deviation models.DeadlineDeviation) (models.DeadlineDeviation, error)
	CreateSubmissionLimitDeviation(ctx context.Context, deviation models.SubmissionLimitDeviation) (models.SubmissionLimitDeviation, error)
	ListDeadlineDeviations(ctx context.Context, exerciseID uint) ([]models.DeadlineDeviation, error)
	ListSubmissionLimitDeviations(ctx context.Context, exerciseID uint) ([]models.SubmissionLimitDeviation, error)
}

type deviationService struct {
	deviations  repository.DeviationRepository
	submissions repository.SubmissionRepository
	objects     repository.LearningObjectRepository
	logger      zerolog.Logger
}

// NewDeviationService constructs a DeviationService instance.
func NewDeviationService(deviations repository.DeviationRepository, submissions repository.SubmissionRepository, objects repository.LearningObjectRepository, logger zerolog.Logger) DeviationService {
	return &deviationService{
		deviations:  deviations,
		submissions: submissions,
		objects:     objects,
		logger:      logger.With().Str("component", "deviation_service").Logger(),
	}
}

func (s *deviationService) DeadlineDeviationFor(ctx context.Context, exerciseID, submitter uint) *models.DeadlineDeviation {
	deviation, err := s.deviations.GetDeadlineDeviation(ctx, exerciseID, submitter)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("exercise_id", exerciseID).Msg("deadline deviation lookup failed")
		}
		return nil
	}
	return &deviation
}

func (s *deviationService) EffectiveDeadline(ctx context.Context, exercise models.LearningObject, round models.Round, submitter uint) time.Time {
	deadline := round.ClosingTime
	if deviation := s.DeadlineDeviationFor(ctx, exercise.ID, submitter); deviation != nil {
		deadline = deadline.Add(deviation.Extension())
	}
	return deadline
}

func (s *deviationService) EffectiveLateDeadline(ctx context.Context, exercise models.LearningObject, round models.Round, submitter uint) time.Time {
	deadline := round.LateSubmissionDeadline
	if deviation := s.DeadlineDeviationFor(ctx, exercise.ID, submitter); deviation != nil {
		deadline = deadline.Add(deviation.Extension())
	}
	return deadline
}

func (s *deviationService) EffectiveSubmissionLimit(ctx context.Context, exercise models.LearningObject, submitter uint) int {
	if exercise.MaxSubmissions == 0 {
		return 0
	}

	limit := exercise.MaxSubmissions
	if limit < 0 {
		// Negative limits mean unlimited attempts with capped storage.
		return 0
	}

	deviation, err := s.deviations.GetSubmissionLimitDeviation(ctx, exercise.ID, submitter)
	if err == nil {
		limit += deviation.ExtraSubmissions
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Err(err).Uint("exercise_id", exercise.ID).Msg("submission limit deviation lookup failed")
	}

	if limit < 0 {
		return 0
	}
	return limit
}

func (s *deviationService) CanSubmit(ctx context.Context, exercise models.LearningObject, round models.Round, submitter uint, now time.Time) error {
	if now.Before(round.OpeningTime) {
		return ErrRoundClosed
	}

	lastAccepted := s.EffectiveDeadline(ctx, exercise, round, submitter)
	if round.LateSubmissionsAllowed {
		lastAccepted = s.EffectiveLateDeadline(ctx, exercise, round, submitter)
	}
	if now.After(lastAccepted) {
		return ErrRoundClosed
	}

	limit := s.EffectiveSubmissionLimit(ctx, exercise, submitter)
	if limit == 0 {
		return nil
	}

	count, err := s.submissions.CountByExerciseAndSubmitter(ctx, exercise.ID, submitter)
	if err != nil {
		return err
	}
	if count >= int64(limit) {
		return ErrSubmissionLimitReached
	}

	return nil
}

func (s *deviationService) CreateDeadlineDeviation(ctx context.Context, deviation models.DeadlineDeviation) (models.DeadlineDeviation, error) {
	if err := s.requireExercise(ctx, deviation.ExerciseID); err != nil {
		return models.DeadlineDeviation{}, err
	}

	// Check-then-create; strict exclusivity is backed by the unique index.
	if _, err := s.deviations.GetDeadlineDeviation(ctx, deviation.ExerciseID, deviation.Submitter); err == nil {
		return models.DeadlineDeviation{}, ErrDeviationExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DeadlineDeviation{}, err
	}

	if err := s.deviations.CreateDeadlineDeviation(ctx, &deviation); err != nil {
		return models.DeadlineDeviation{}, err
	}

	s.logger.Info().
		Uint("exercise_id", deviation.ExerciseID).
		Uint("submitter", deviation.Submitter).
		Int("extra_minutes", deviation.ExtraMinutes).
		Msg("deadline deviation created")

	return deviation, nil
}

func (s *deviationService) CreateSubmissionLimitDeviation(ctx context.Context, deviation models.SubmissionLimitDeviation) (models.SubmissionLimitDeviation, error) {
	if err := s.requireExercise(ctx, deviation.ExerciseID); err != nil {
		return models.SubmissionLimitDeviation{}, err
	}

	if _, err := s.deviations.GetSubmissionLimitDeviation(ctx, deviation.ExerciseID, deviation.Submitter); err == nil {
		return models.SubmissionLimitDeviation{}, ErrDeviationExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SubmissionLimitDeviation{}, err
	}

	if err := s.deviations.CreateSubmissionLimitDeviation(ctx, &deviation); err != nil {
		return models.SubmissionLimitDeviation{}, err
	}

	s.logger.Info().
		Uint("exercise_id", deviation.ExerciseID).
		Uint("submitter", deviation.Submitter).
		Int("extra_submissions", deviation.ExtraSubmissions).
		Msg("submission limit deviation created")

	return deviation, nil
}

func (s *deviationService) ListDeadlineDeviations(ctx context.Context, exerciseID uint) ([]models.DeadlineDeviation, error) {
	if err := s.requireExercise(ctx, exerciseID); err != nil {
		return nil, err
	}
	return s.deviations.ListDeadlineDeviations(ctx, exerciseID)
}

func (s *deviationService) ListSubmissionLimitDeviations(ctx context.Context, exerciseID uint) ([]models.SubmissionLimitDeviation, error) {
	if err := s.requireExercise(ctx, exerciseID); err != nil {
		return nil, err
	}
	return s.deviations.ListSubmissionLimitDeviations(ctx, exerciseID)
}

func (s *deviationService) requireExercise(ctx context.Context, exerciseID uint) error {
	object, err := s.objects.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}
	if !object.IsSubmittable() {
		return ErrExerciseNotFound
	}
	return nil
}
