package dto

import (
	"time"

	"github.com/noah-isme/astra-go-api/internal/models"
)

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID                 uint                    `json:"id"`
	Hash               string                  `json:"hash"`
	ExerciseID         uint                    `json:"exercise_id"`
	Submitter          uint                    `json:"submitter"`
	Status             string                  `json:"status"`
	Grade              int                     `json:"grade"`
	ServicePoints      int                     `json:"service_points"`
	ServiceMaxPoints   int                     `json:"service_max_points"`
	LatePenaltyApplied *float64                `json:"late_penalty_applied"`
	Feedback           string                  `json:"feedback"`
	SubmissionTime     time.Time               `json:"submission_time"`
	GradingTime        *time.Time              `json:"grading_time"`
	Files              []SubmittedFileResponse `json:"files"`
}

// SubmittedFileResponse serializes a stored submission file pointer.
type SubmittedFileResponse struct {
	ID       uint   `json:"id"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	MIMEType string `json:"mime_type"`
}

// ManualGradeRequest carries a staff-entered grading outcome.
type ManualGradeRequest struct {
	Points         int    `json:"points" validate:"gte=0"`
	MaxPoints      int    `json:"max_points" validate:"required,gt=0"`
	Feedback       string `json:"feedback"`
	IgnoreDeadline bool   `json:"ignore_deadline"`
}

// RoundTotalResponse carries a student's aggregate grade for a round.
type RoundTotalResponse struct {
	RoundID   uint `json:"round_id"`
	Submitter uint `json:"submitter"`
	Total     int  `json:"total"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:                 model.ID,
		Hash:               model.Hash,
		ExerciseID:         model.ExerciseID,
		Submitter:          model.Submitter,
		Status:             model.Status,
		Grade:              model.Grade,
		ServicePoints:      model.ServicePoints,
		ServiceMaxPoints:   model.ServiceMaxPoints,
		LatePenaltyApplied: model.LatePenaltyApplied,
		Feedback:           model.Feedback,
		SubmissionTime:     model.SubmissionTime,
		GradingTime:        model.GradingTime,
	}

	for _, file := range model.Files {
		response.Files = append(response.Files, SubmittedFileResponse{
			ID:       file.ID,
			FileName: file.FileName,
			FileURL:  file.FileURL,
			MIMEType: file.MIMEType,
		})
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
