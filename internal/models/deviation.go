package models

import "time"

// DeadlineDeviation grants a single student extra time on a single exercise.
// At most one row may exist per (exercise, submitter) pair.
type DeadlineDeviation struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	ExerciseID uint `gorm:"not null;uniqueIndex:idx_deadline_deviation_pair" json:"exercise_id"`
	Submitter  uint `gorm:"not null;uniqueIndex:idx_deadline_deviation_pair" json:"submitter"`
	// ExtraMinutes extends both the closing time and the late submission
	// deadline for this student.
	ExtraMinutes int `gorm:"not null" json:"extra_minutes"`
	// WithoutLatePenalty exempts the student from the round's late penalty.
	WithoutLatePenalty bool      `json:"without_late_penalty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Extension returns the granted extra time as a duration.
func (d DeadlineDeviation) Extension() time.Duration {
	return time.Duration(d.ExtraMinutes) * time.Minute
}

// SubmissionLimitDeviation grants a single student extra submission attempts
// on a single exercise. At most one row may exist per (exercise, submitter).
type SubmissionLimitDeviation struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ExerciseID       uint      `gorm:"not null;uniqueIndex:idx_submit_limit_deviation_pair" json:"exercise_id"`
	Submitter        uint      `gorm:"not null;uniqueIndex:idx_submit_limit_deviation_pair" json:"submitter"`
	ExtraSubmissions int       `gorm:"not null" json:"extra_submissions"`
	CreatedAt        time.Time `json:"created_at"`
}
