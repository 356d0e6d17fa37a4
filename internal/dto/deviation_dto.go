package dto

import (
	"time"

	"github.com/noah-isme/astra-go-api/internal/models"
)

// DeadlineDeviationCreateRequest grants a student extra time on an exercise.
type DeadlineDeviationCreateRequest struct {
	ExerciseID         uint `json:"exercise_id" validate:"required,gt=0"`
	Submitter          uint `json:"submitter" validate:"required,gt=0"`
	ExtraMinutes       int  `json:"extra_minutes" validate:"required,gt=0"`
	WithoutLatePenalty bool `json:"without_late_penalty"`
}

// SubmissionLimitDeviationCreateRequest grants a student extra attempts.
type SubmissionLimitDeviationCreateRequest struct {
	ExerciseID       uint `json:"exercise_id" validate:"required,gt=0"`
	Submitter        uint `json:"submitter" validate:"required,gt=0"`
	ExtraSubmissions int  `json:"extra_submissions" validate:"required,gt=0"`
}

// DeadlineDeviationResponse serializes a deadline deviation.
type DeadlineDeviationResponse struct {
	ID                 uint      `json:"id"`
	ExerciseID         uint      `json:"exercise_id"`
	Submitter          uint      `json:"submitter"`
	ExtraMinutes       int       `json:"extra_minutes"`
	WithoutLatePenalty bool      `json:"without_late_penalty"`
	CreatedAt          time.Time `json:"created_at"`
}

// SubmissionLimitDeviationResponse serializes a submission limit deviation.
type SubmissionLimitDeviationResponse struct {
	ID               uint      `json:"id"`
	ExerciseID       uint      `json:"exercise_id"`
	Submitter        uint      `json:"submitter"`
	ExtraSubmissions int       `json:"extra_submissions"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewDeadlineDeviationResponse converts a DeadlineDeviation model into a DTO.
func NewDeadlineDeviationResponse(model models.DeadlineDeviation) DeadlineDeviationResponse {
	return DeadlineDeviationResponse{
		ID:                 model.ID,
		ExerciseID:         model.ExerciseID,
		Submitter:          model.Submitter,
		ExtraMinutes:       model.ExtraMinutes,
		WithoutLatePenalty: model.WithoutLatePenalty,
		CreatedAt:          model.CreatedAt,
	}
}

// NewSubmissionLimitDeviationResponse converts a SubmissionLimitDeviation model into a DTO.
func NewSubmissionLimitDeviationResponse(model models.SubmissionLimitDeviation) SubmissionLimitDeviationResponse {
	return SubmissionLimitDeviationResponse{
		ID:               model.ID,
		ExerciseID:       model.ExerciseID,
		Submitter:        model.Submitter,
		ExtraSubmissions: model.ExtraSubmissions,
		CreatedAt:        model.CreatedAt,
	}
}

// NewDeadlineDeviationResponseSlice converts deadline deviation models into DTOs.
func NewDeadlineDeviationResponseSlice(deviations []models.DeadlineDeviation) []DeadlineDeviationResponse {
	responses := make([]DeadlineDeviationResponse, 0, len(deviations))
	for _, deviation := range deviations {
		responses = append(responses, NewDeadlineDeviationResponse(deviation))
	}

	return responses
}

// NewSubmissionLimitDeviationResponseSlice converts submission limit deviation models into DTOs.
func NewSubmissionLimitDeviationResponseSlice(deviations []models.SubmissionLimitDeviation) []SubmissionLimitDeviationResponse {
	responses := make([]SubmissionLimitDeviationResponse, 0, len(deviations))
	for _, deviation := range deviations {
		responses = append(responses, NewSubmissionLimitDeviationResponse(deviation))
	}

	return responses
}
