package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
)

// DeviationRepository defines data operations for per-student policy overrides.
type DeviationRepository interface {
	GetDeadlineDeviation(ctx context.Context, exerciseID, submitter uint) (models.DeadlineDeviation, error)
	GetSubmissionLimitDeviation(ctx context.Context, exerciseID, submitter uint) (models.SubmissionLimitDeviation, error)
	CreateDeadlineDeviation(ctx context.Context, deviation *models.DeadlineDeviation) error
	CreateSubmissionLimitDeviation(ctx context.Context, deviation *models.SubmissionLimitDeviation) error
	ListDeadlineDeviations(ctx context.Context, exerciseID uint) ([]models.DeadlineDeviation, error)
	ListSubmissionLimitDeviations(ctx context.Context, exerciseID uint) ([]models.SubmissionLimitDeviation, error)
}

type deviationRepository struct {
	db *gorm.DB
}

// NewDeviationRepository instantiates the repository.
func NewDeviationRepository(db *gorm.DB) DeviationRepository {
	return &deviationRepository{db: db}
}

func (r *deviationRepository) GetDeadlineDeviation(ctx context.Context, exerciseID, submitter uint) (models.DeadlineDeviation, error) {
	var deviation models.DeadlineDeviation
	if err := r.db.WithContext(ctx).
		Where("exercise_id = ?", exerciseID).
		Where("submitter = ?", submitter).
		First(&deviation).Error; err != nil {
		return models.DeadlineDeviation{}, err
	}

	return deviation, nil
}

func (r *deviationRepository) GetSubmissionLimitDeviation(ctx context.Context, exerciseID, submitter uint) (models.SubmissionLimitDeviation, error) {
	var deviation models.SubmissionLimitDeviation
	if err := r.db.WithContext(ctx).
		Where("exercise_id = ?", exerciseID).
		Where("submitter = ?", submitter).
		First(&deviation).Error; err != nil {
		return models.SubmissionLimitDeviation{}, err
	}

	return deviation, nil
}

func (r *deviationRepository) CreateDeadlineDeviation(ctx context.Context, deviation *models.DeadlineDeviation) error {
	return r.db.WithContext(ctx).Create(deviation).Error
}

func (r *deviationRepository) CreateSubmissionLimitDeviation(ctx context.Context, deviation *models.SubmissionLimitDeviation) error {
	return r.db.WithContext(ctx).Create(deviation).Error
}

func (r *deviationRepository) ListDeadlineDeviations(ctx context.Context, exerciseID uint) ([]models.DeadlineDeviation, error) {
	var deviations []models.DeadlineDeviation
	if err := r.db.WithContext(ctx).
		Where("exercise_id = ?", exerciseID).
		Order("submitter ASC").
		Find(&deviations).Error; err != nil {
		return nil, err
	}

	return deviations, nil
}

func (r *deviationRepository) ListSubmissionLimitDeviations(ctx context.Context, exerciseID uint) ([]models.SubmissionLimitDeviation, error) {
	var deviations []models.SubmissionLimitDeviation
	if err := r.db.WithContext(ctx).
		Where("exercise_id = ?", exerciseID).
		Order("submitter ASC").
		Find(&deviations).Error; err != nil {
		return nil, err
	}

	return deviations, nil
}
