package model

import "time"

// Student represents a student account belonging to a batch.
// HasTakenTest flips false→true exactly once, at scoring time.
type Student struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	HasTakenTest bool      `json:"has_taken_test"`
	BatchID      int       `json:"batch_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateStudentRequest is the payload for creating a single student.
// Password is optional; when omitted one is generated and returned once.
type CreateStudentRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"omitempty,min=6,max=128"`
	BatchID  int    `json:"batch_id" binding:"required"`
}

// UpdateStudentRequest is the payload for updating an existing student.
type UpdateStudentRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"omitempty,min=6,max=128"`
	BatchID  int    `json:"batch_id" binding:"required"`
}
