package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
)

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByHash(ctx context.Context, hash string) (models.Submission, error)
	// CountByExerciseAndSubmitter counts all submissions a student has made to
	// an exercise, whatever their status.
	CountByExerciseAndSubmitter(ctx context.Context, exerciseID, submitter uint) (int64, error)
	// GetBest returns the student's best graded submission for an exercise:
	// highest grade, ties broken by earliest submission time.
	GetBest(ctx context.Context, exerciseID, submitter uint) (models.Submission, error)
	ListByExerciseAndSubmitter(ctx context.Context, exerciseID, submitter uint) ([]models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	CreateFile(ctx context.Context, file *models.SubmittedFile) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).Preload("Files")
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByHash(ctx context.Context, hash string) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).Where("hash = ?", hash).First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) CountByExerciseAndSubmitter(ctx context.Context, exerciseID, submitter uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("exercise_id = ?", exerciseID).
		Where("submitter = ?", submitter).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *submissionRepository) GetBest(ctx context.Context, exerciseID, submitter uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("exercise_id = ?", exerciseID).
		Where("submitter = ?", submitter).
		Where("status = ?", models.SubmissionStatusReady).
		Order("grade DESC").
		Order("submission_time ASC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByExerciseAndSubmitter(ctx context.Context, exerciseID, submitter uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.baseQuery(ctx).
		Where("exercise_id = ?", exerciseID).
		Where("submitter = ?", submitter).
		Order("submission_time DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) CreateFile(ctx context.Context, file *models.SubmittedFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}
