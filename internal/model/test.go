package model

import (
	"time"

	"github.com/google/uuid"
)

// Test represents a timed multiple-choice test bound to a batch.
// StartTime/EndTime are optional; when both are set they bound the
// window in which students may log in for an attempt.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	IsActive        bool       `json:"is_active"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	BatchID         int        `json:"batch_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateTestRequest is the payload for creating a new test.
type CreateTestRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	StartTime       *time.Time `json:"start_time" binding:"omitempty"`
	EndTime         *time.Time `json:"end_time" binding:"omitempty,gtfield=StartTime"`
	BatchID         int        `json:"batch_id" binding:"required"`
}

// UpdateTestRequest is the payload for updating an existing test.
type UpdateTestRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=255"`
	DurationMinutes *int       `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	IsActive        *bool      `json:"is_active" binding:"omitempty"`
	StartTime       *time.Time `json:"start_time" binding:"omitempty"`
	EndTime         *time.Time `json:"end_time" binding:"omitempty"`
}

// TestPaper is the attempt-facing view of a test: the question list
// carries no correct answers.
type TestPaper struct {
	TestID           uuid.UUID            `json:"test_id"`
	Title            string               `json:"title"`
	DurationMinutes  int                  `json:"duration_minutes"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	Questions        []QuestionForStudent `json:"questions"`
}
