package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/repository"
	"github.com/noah-isme/astra-go-api/pkg/aplus"
)

// ErrSubmissionNotFound indicates no submission matches the given token.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrFileTooLarge indicates an uploaded file exceeds the exercise's limit.
var ErrFileTooLarge = errors.New("submitted file exceeds the size limit")

// ErrExerciseUnavailable indicates the exercise exists but is closed for
// maintenance.
var ErrExerciseUnavailable = errors.New("exercise is under maintenance")

// SubmittedUpload is one file received from the student, already read into
// memory by the HTTP layer.
type SubmittedUpload struct {
	FieldName string
	FileName  string
	MIMEType  string
	Content   []byte
}

// SubmissionServiceConfig carries the submission flow settings.
type SubmissionServiceConfig struct {
	// BaseURL is this server's external origin, used to build the submission
	// callback URL sent upstream.
	BaseURL string
	// APIKey authenticates requests to the exercise service.
	APIKey string
}

// SubmissionService orchestrates the submission flow: policy check, upload to
// the exercise service, response interpretation and grading.
type SubmissionService interface {
	Submit(ctx context.Context, exerciseID, submitter uint, fields url.Values, uploads []SubmittedUpload) (models.Submission, error)
	GetByHash(ctx context.Context, hash string) (models.Submission, error)
	// Poll re-fetches the exercise service page for a waiting submission and
	// re-runs the protocol interpreter on it.
	Poll(ctx context.Context, hash string) (models.Submission, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	objects     repository.LearningObjectRepository
	rounds      repository.RoundRepository
	deviations  DeviationService
	client      *aplus.Client
	extractor   PageExtractor
	interpreter ProtocolInterpreter
	uploader    FileUploader
	cfg         SubmissionServiceConfig
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. The uploader
// may be nil, in which case submitted files are forwarded upstream but not
// archived.
func NewSubmissionService(submissions repository.SubmissionRepository, objects repository.LearningObjectRepository, rounds repository.RoundRepository, deviations DeviationService, client *aplus.Client, extractor PageExtractor, interpreter ProtocolInterpreter, uploader FileUploader, cfg SubmissionServiceConfig, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		objects:     objects,
		rounds:      rounds,
		deviations:  deviations,
		client:      client,
		extractor:   extractor,
		interpreter: interpreter,
		uploader:    uploader,
		cfg:         cfg,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/astra-go-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, exerciseID, submitter uint, fields url.Values, uploads []SubmittedUpload) (models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int64("submission.exercise_id", int64(exerciseID)),
		attribute.Int64("submission.submitter", int64(submitter)),
	))
	defer span.End()

	exercise, round, err := s.loadExercise(ctx, exerciseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exercise_unavailable")
		return models.Submission{}, err
	}

	now := s.now()
	if err := s.deviations.CanSubmit(ctx, exercise, round, submitter, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "policy_violation")
		return models.Submission{}, err
	}

	for _, upload := range uploads {
		if exercise.MaxFileSize > 0 && len(upload.Content) > exercise.MaxFileSize {
			return models.Submission{}, ErrFileTooLarge
		}
	}

	submission := models.Submission{
		ExerciseID:     exercise.ID,
		Submitter:      submitter,
		Status:         models.SubmissionStatusInitialized,
		SubmissionTime: now,
		Hash:           uuid.NewString(),
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		return models.Submission{}, err
	}

	files := s.storeFiles(ctx, &submission, uploads)

	page, err := s.exchange(ctx, exercise, submission, fields, files)
	if err != nil {
		// The submission keeps its prior status; the student may retry. The
		// initialized row still counts toward the submission limit: every
		// created submission consumes an attempt, whether or not the exercise
		// service accepted it.
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange_failed")
		return submission, err
	}

	graded, err := s.interpreter.Apply(ctx, submission, exercise, page)
	if err != nil {
		span.RecordError(err)
		return submission, err
	}

	span.SetAttributes(attribute.String("submission.status", graded.Status))

	return graded, nil
}

func (s *submissionService) GetByHash(ctx context.Context, hash string) (models.Submission, error) {
	submission, err := s.submissions.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	return submission, nil
}

func (s *submissionService) Poll(ctx context.Context, hash string) (models.Submission, error) {
	submission, err := s.GetByHash(ctx, hash)
	if err != nil {
		return models.Submission{}, err
	}

	if submission.Status != models.SubmissionStatusWaiting {
		return submission, nil
	}

	exercise, _, err := s.loadExercise(ctx, submission.ExerciseID)
	if err != nil {
		return submission, err
	}

	target, err := s.serviceURL(exercise, submission)
	if err != nil {
		return submission, err
	}

	remote, err := s.client.Get(ctx, target, aplus.RequestOptions{APIKey: s.cfg.APIKey})
	if err != nil {
		return submission, err
	}

	page, err := s.extractor.Extract(ctx, exercise, remote)
	if err != nil {
		return submission, err
	}

	return s.interpreter.Apply(ctx, submission, exercise, page)
}

func (s *submissionService) loadExercise(ctx context.Context, exerciseID uint) (models.LearningObject, models.Round, error) {
	exercise, err := s.objects.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LearningObject{}, models.Round{}, ErrExerciseNotFound
		}
		return models.LearningObject{}, models.Round{}, err
	}
	if !exercise.IsSubmittable() || exercise.Status == models.ObjectStatusHidden {
		return models.LearningObject{}, models.Round{}, ErrExerciseNotFound
	}
	if exercise.Status == models.ObjectStatusMaintenance {
		return models.LearningObject{}, models.Round{}, ErrExerciseUnavailable
	}

	round, err := s.rounds.GetByID(ctx, exercise.RoundID)
	if err != nil {
		return models.LearningObject{}, models.Round{}, err
	}

	return exercise, round, nil
}

// storeFiles archives the uploads in the external file store and records the
// pointers. Archive failures are logged, not fatal: the upstream exchange
// still carries the original bytes.
func (s *submissionService) storeFiles(ctx context.Context, submission *models.Submission, uploads []SubmittedUpload) []aplus.UploadFile {
	files := make([]aplus.UploadFile, 0, len(uploads))

	for _, upload := range uploads {
		mime := upload.MIMEType
		if mime == "" {
			mime = mimetype.Detect(upload.Content).String()
		}

		files = append(files, aplus.UploadFile{
			FieldName: upload.FieldName,
			FileName:  upload.FileName,
			MIMEType:  mime,
			Content:   bytes.NewReader(upload.Content),
		})

		if s.uploader == nil {
			continue
		}

		storedURL, err := s.uploader.Upload(ctx, upload.FileName, bytes.NewReader(upload.Content))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", upload.FileName).Msg("file archive failed")
			continue
		}

		file := models.SubmittedFile{
			SubmissionID: submission.ID,
			FileName:     upload.FileName,
			FileURL:      storedURL,
			MIMEType:     mime,
		}
		if err := s.submissions.CreateFile(ctx, &file); err != nil {
			s.logger.Warn().Err(err).Str("file", upload.FileName).Msg("file record creation failed")
		}
	}

	return files
}

func (s *submissionService) exchange(ctx context.Context, exercise models.LearningObject, submission models.Submission, fields url.Values, files []aplus.UploadFile) (*ExercisePage, error) {
	target, err := s.serviceURL(exercise, submission)
	if err != nil {
		return nil, err
	}

	remote, err := s.client.Post(ctx, target, aplus.RequestOptions{APIKey: s.cfg.APIKey}, fields, files)
	if err != nil {
		return nil, err
	}

	return s.extractor.Extract(ctx, exercise, remote)
}

// serviceURL appends the submission callback to the exercise's service URL so
// asynchronous graders can address this submission by its token.
func (s *submissionService) serviceURL(exercise models.LearningObject, submission models.Submission) (string, error) {
	parsed, err := url.Parse(exercise.ServiceURL)
	if err != nil {
		return "", fmt.Errorf("invalid service url for exercise %d: %w", exercise.ID, err)
	}

	query := parsed.Query()
	query.Set("submission_url", fmt.Sprintf("%s/api/v1/submissions/%s", s.cfg.BaseURL, submission.Hash))
	query.Set("max_points", fmt.Sprintf("%d", exercise.MaxPoints))
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}
