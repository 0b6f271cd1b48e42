package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

// ErrBadAnswerIndex rejects a correct_answer index outside the options.
var ErrBadAnswerIndex = errors.New("correct_answer is out of range for options")

// QuestionService handles question management business logic.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

func (s *QuestionService) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	return s.questionRepo.ListByTest(ctx, testID)
}

// Add validates and inserts a single question.
func (s *QuestionService) Add(ctx context.Context, q *model.Question) error {
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return ErrBadAnswerIndex
	}
	return s.questionRepo.Add(ctx, q)
}

// Replace swaps the full question list of a test.
func (s *QuestionService) Replace(ctx context.Context, testID uuid.UUID, questions []model.Question) error {
	for i, q := range questions {
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return fmt.Errorf("question %d: %w", i, ErrBadAnswerIndex)
		}
	}
	return s.questionRepo.ReplaceForTest(ctx, testID, questions)
}
