package service

import (
	"context"
	"io"
	"time"
)

// FileUploader stores a submitted file and returns its URL in the external
// file store.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// GradebookWriter pushes a student's aggregate round grade to the external
// gradebook.
type GradebookWriter interface {
	WriteGrade(ctx context.Context, roundID, studentID uint, grade int, gradedAt time.Time) error
}

// EventPublisher emits domain events for downstream consumers. A nil publisher
// disables event delivery.
type EventPublisher interface {
	Publish(subject string, payload interface{}) error
}
