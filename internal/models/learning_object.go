package models

import "time"

// ObjectKind discriminates the learning object variants stored in one table.
type ObjectKind string

const (
	// ObjectKindExercise is a submittable, graded learning object.
	ObjectKindExercise ObjectKind = "exercise"
	// ObjectKindChapter is a content-only learning object that may embed exercises.
	ObjectKindChapter ObjectKind = "chapter"
)

const (
	// ObjectStatusReady marks an object visible and open to students.
	ObjectStatusReady = "ready"
	// ObjectStatusHidden hides an object from students and from totals.
	ObjectStatusHidden = "hidden"
	// ObjectStatusMaintenance marks an object temporarily closed for work.
	ObjectStatusMaintenance = "maintenance"
	// ObjectStatusUnlisted keeps an object reachable by link but out of listings.
	ObjectStatusUnlisted = "unlisted"
)

// LearningObject is an exercise or chapter within an exercise round. The two
// variants share one table and are discriminated by Kind; exercise-only
// columns are zero-valued on chapters.
type LearningObject struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Kind       ObjectKind `gorm:"size:16;not null" json:"kind"`
	Status     string     `gorm:"size:32;not null;default:ready" json:"status"`
	RoundID    uint       `gorm:"not null;index" json:"round_id"`
	CategoryID uint       `gorm:"not null" json:"category_id"`
	ParentID   *uint      `gorm:"index" json:"parent_id"`
	OrderNum   int        `gorm:"not null;default:1" json:"order_num"`
	RemoteKey  string     `gorm:"size:128;not null;index" json:"remote_key"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	ServiceURL string     `gorm:"size:512" json:"service_url"`

	// Exercise variant fields.
	MaxSubmissions        int  `json:"max_submissions"`
	MaxPoints             int  `json:"max_points"`
	PointsToPass          int  `json:"points_to_pass"`
	MaxFileSize           int  `json:"max_file_size"`
	AllowAssistantViewing bool `json:"allow_assistant_viewing"`
	AllowAssistantGrading bool `json:"allow_assistant_grading"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSubmittable reports whether students can submit solutions to this object.
func (o LearningObject) IsSubmittable() bool {
	return o.Kind == ObjectKindExercise
}

// IsUnlimited reports whether the exercise accepts an unbounded number of
// submissions. A negative MaxSubmissions also means unlimited; only the most
// recent |MaxSubmissions| are kept in storage.
func (o LearningObject) IsUnlimited() bool {
	return o.MaxSubmissions <= 0
}

// StoredSubmissionLimit returns how many submissions are retained per student,
// or zero when every submission is kept.
func (o LearningObject) StoredSubmissionLimit() int {
	if o.MaxSubmissions < 0 {
		return -o.MaxSubmissions
	}
	return 0
}
