package model

import "time"

// Batch represents a named cohort grouping students and tests.
type Batch struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateBatchRequest is the payload for creating a new batch.
type CreateBatchRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}

// UpdateBatchRequest is the payload for renaming a batch.
type UpdateBatchRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}
