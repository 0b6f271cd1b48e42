package model

import (
	"time"

	"github.com/google/uuid"
)

// TestSession records one student's attempt at one test. It is open
// while CompletedAt is null; at most one open session exists per
// (test_id, student_id), enforced by a partial unique index.
type TestSession struct {
	ID             uuid.UUID  `json:"id"`
	TestID         uuid.UUID  `json:"test_id"`
	StudentID      int        `json:"student_id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalScore     *int       `json:"total_score,omitempty"`
	TotalQuestions *int       `json:"total_questions,omitempty"`
}

// AttemptLoginRequest is the payload for a student starting an attempt.
type AttemptLoginRequest struct {
	TestID   uuid.UUID `json:"test_id" binding:"required"`
	Email    string    `json:"email" binding:"required,email"`
	Password string    `json:"password" binding:"required,min=4,max=128"`
}

// SubmitAnswersRequest is the payload for submitting a finished attempt.
// Answers is the full vector indexed by question order; -1 marks an
// unanswered slot.
type SubmitAnswersRequest struct {
	Answers []int `json:"answers" binding:"required"`
}

// SaveAnswerRequest is the payload for autosaving a single answer.
type SaveAnswerRequest struct {
	QuestionID  uuid.UUID `json:"question_id" binding:"required"`
	OptionIndex int       `json:"option_index" binding:"min=0"`
}
