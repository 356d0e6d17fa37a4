package models

import "time"

// Round is a time-boxed container of learning objects, the graded activity
// instance students interact with.
type Round struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	CourseID               uint      `gorm:"not null;index" json:"course_id"`
	RemoteKey              string    `gorm:"size:128;not null;index" json:"remote_key"`
	Name                   string    `gorm:"size:255;not null" json:"name"`
	Status                 string    `gorm:"size:32;not null;default:ready" json:"status"`
	OpeningTime            time.Time `gorm:"not null" json:"opening_time"`
	ClosingTime            time.Time `gorm:"not null" json:"closing_time"`
	LateSubmissionsAllowed bool      `json:"late_submissions_allowed"`
	LateSubmissionDeadline time.Time `json:"late_submission_deadline"`
	// LateSubmissionPenalty is the fraction of points deducted from late
	// submissions, in [0, 1].
	LateSubmissionPenalty float64   `json:"late_submission_penalty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// IsOpen reports whether the round accepts on-time submissions at the given instant.
func (r Round) IsOpen(reference time.Time) bool {
	return !reference.Before(r.OpeningTime) && !reference.After(r.ClosingTime)
}

// IsLateSubmissionOpen reports whether the reference instant falls inside the
// late submission window.
func (r Round) IsLateSubmissionOpen(reference time.Time) bool {
	return r.LateSubmissionsAllowed &&
		reference.After(r.ClosingTime) &&
		!reference.After(r.LateSubmissionDeadline)
}
