package models

import "time"

// Category groups learning objects for totals and listing. Objects in hidden
// categories are excluded from aggregate grades.
type Category struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseID     uint      `gorm:"not null;index" json:"course_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Status       string    `gorm:"size:32;not null;default:ready" json:"status"`
	PointsToPass int       `json:"points_to_pass"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsHidden reports whether the category is excluded from student views and totals.
func (c Category) IsHidden() bool {
	return c.Status == ObjectStatusHidden
}
