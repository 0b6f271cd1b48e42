package service

import (
	"context"

	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

// BatchService handles batch business logic.
type BatchService struct {
	batchRepo *repository.BatchRepository
}

// NewBatchService creates a new BatchService.
func NewBatchService(batchRepo *repository.BatchRepository) *BatchService {
	return &BatchService{batchRepo: batchRepo}
}

func (s *BatchService) GetByID(ctx context.Context, id int) (*model.Batch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

func (s *BatchService) List(ctx context.Context) ([]model.Batch, error) {
	return s.batchRepo.List(ctx)
}

func (s *BatchService) Create(ctx context.Context, b *model.Batch) error {
	return s.batchRepo.Create(ctx, b)
}

func (s *BatchService) Update(ctx context.Context, b *model.Batch) error {
	return s.batchRepo.Update(ctx, b)
}

func (s *BatchService) Delete(ctx context.Context, id int) error {
	return s.batchRepo.Delete(ctx, id)
}
