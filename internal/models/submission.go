package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// SubmissionStatusInitialized marks a submission created but not yet sent upstream.
	SubmissionStatusInitialized = "initialized"
	// SubmissionStatusWaiting marks a submission accepted upstream and queued for grading.
	SubmissionStatusWaiting = "waiting"
	// SubmissionStatusReady marks a graded submission.
	SubmissionStatusReady = "ready"
	// SubmissionStatusError marks a submission the exercise service answered inconclusively.
	SubmissionStatusError = "error"
	// SubmissionStatusRejected marks a submission the exercise service refused.
	SubmissionStatusRejected = "rejected"
)

// Submission is one student solution to an exercise, together with the grading
// state reported by the exercise service.
type Submission struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ExerciseID     uint      `gorm:"not null;index:idx_submissions_exercise_submitter" json:"exercise_id"`
	Submitter      uint      `gorm:"not null;index:idx_submissions_exercise_submitter" json:"submitter"`
	Status         string    `gorm:"size:32;not null" json:"status"`
	SubmissionTime time.Time `gorm:"not null" json:"submission_time"`
	// Hash is the stable random token used to address this submission from
	// outside without exposing the numeric id.
	Hash               string         `gorm:"size:64;not null;uniqueIndex" json:"hash"`
	Grade              int            `gorm:"not null;default:0" json:"grade"`
	ServicePoints      int            `json:"service_points"`
	ServiceMaxPoints   int            `json:"service_max_points"`
	LatePenaltyApplied *float64       `json:"late_penalty_applied"`
	Feedback           string         `gorm:"type:text" json:"feedback"`
	AssistantFeedback  string         `gorm:"type:text" json:"assistant_feedback"`
	GradingData        datatypes.JSON `json:"grading_data"`
	GradingTime        *time.Time     `json:"grading_time"`
	GraderID           *uint          `json:"grader_id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`

	Files []SubmittedFile `json:"files"`
}

// IsGraded reports whether the submission has reached its graded terminal state.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusReady
}

// SubmittedFile records one uploaded file belonging to a submission. The bytes
// themselves live in the external file store; only the pointer is kept here.
type SubmittedFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	FileURL      string    `gorm:"size:512;not null" json:"file_url"`
	MIMEType     string    `gorm:"size:128" json:"mime_type"`
	CreatedAt    time.Time `json:"created_at"`
}
