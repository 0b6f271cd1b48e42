package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/quizdesk/quizdesk-backend/internal/response"
)

// TestService handles test management business logic.
type TestService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	sessionRepo  *repository.TestSessionRepository
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, questionRepo *repository.QuestionRepository, sessionRepo *repository.TestSessionRepository) *TestService {
	return &TestService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
	}
}

func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return s.testRepo.GetByID(ctx, id)
}

// List retrieves tests with pagination and optional batch filter.
func (s *TestService) List(ctx context.Context, batchID *int, page, perPage int) ([]model.Test, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	tests, total, err := s.testRepo.ListPaginated(ctx, batchID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if tests == nil {
		tests = []model.Test{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return tests, pagination, nil
}

func (s *TestService) Create(ctx context.Context, t *model.Test) error {
	return s.testRepo.Create(ctx, t)
}

func (s *TestService) Update(ctx context.Context, t *model.Test) error {
	return s.testRepo.Update(ctx, t)
}

func (s *TestService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.testRepo.SetActive(ctx, id, active)
}

func (s *TestService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.testRepo.Delete(ctx, id)
}

// GetResults retrieves paginated session results for a test.
func (s *TestService) GetResults(ctx context.Context, testID uuid.UUID, page, perPage int) ([]repository.TestResult, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return s.sessionRepo.ListByTest(ctx, testID, page, perPage)
}
