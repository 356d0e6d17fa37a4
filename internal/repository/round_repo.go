package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
)

// RoundRepository defines data operations for exercise rounds.
type RoundRepository interface {
	GetByID(ctx context.Context, id uint) (models.Round, error)
	GetByRemoteKey(ctx context.Context, courseID uint, remoteKey string) (models.Round, error)
	Create(ctx context.Context, round *models.Round) error
	Update(ctx context.Context, round *models.Round) error
}

type roundRepository struct {
	db *gorm.DB
}

// NewRoundRepository instantiates the repository.
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &roundRepository{db: db}
}

func (r *roundRepository) GetByID(ctx context.Context, id uint) (models.Round, error) {
	var round models.Round
	if err := r.db.WithContext(ctx).First(&round, id).Error; err != nil {
		return models.Round{}, err
	}

	return round, nil
}

func (r *roundRepository) GetByRemoteKey(ctx context.Context, courseID uint, remoteKey string) (models.Round, error) {
	var round models.Round
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Where("remote_key = ?", remoteKey).
		First(&round).Error; err != nil {
		return models.Round{}, err
	}

	return round, nil
}

func (r *roundRepository) Create(ctx context.Context, round *models.Round) error {
	return r.db.WithContext(ctx).Create(round).Error
}

func (r *roundRepository) Update(ctx context.Context, round *models.Round) error {
	return r.db.WithContext(ctx).Save(round).Error
}
